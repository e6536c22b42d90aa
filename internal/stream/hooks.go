package stream

// HookName identifies one subscriber slot.
type HookName string

const (
	OnInstance   HookName = "onInstance"
	OnDeployment HookName = "onDeployment"
	OnServer     HookName = "onServer"
)

// registry holds at most one subscriber per hook; the last writer wins.
type registry struct {
	instance   func(InstanceEvent)
	deployment func(string)
	server     func(ServerEvent)
}

func (r *registry) remove(name HookName) bool {
	switch name {
	case OnInstance:
		r.instance = nil
	case OnDeployment:
		r.deployment = nil
	case OnServer:
		r.server = nil
	default:
		return false
	}
	return true
}
