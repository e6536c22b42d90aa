package consoleapi

// Instance describes the cloud machine hosting the game server.
type Instance struct {
	InstanceID   string  `json:"instanceId"`
	InstanceType string  `json:"instanceType"`
	RegionID     string  `json:"regionId"`
	ZoneID       string  `json:"zoneId"`
	DeletedAt    *string `json:"deletedAt"`
	CreatedAt    string  `json:"createdAt"`
	Deployed     bool    `json:"deployed"`
	IP           *string `json:"ip"`
	VSwitchID    string  `json:"vswitchId"`
}

// Active reports whether the instance has not been deleted.
func (i *Instance) Active() bool {
	return i != nil && i.DeletedAt == nil
}

// InstanceStatus is the provider-reported machine state.
type InstanceStatus string

const (
	InstancePending     InstanceStatus = "Pending"
	InstanceStarting    InstanceStatus = "Starting"
	InstanceRunning     InstanceStatus = "Running"
	InstanceStopping    InstanceStatus = "Stopping"
	InstanceStopped     InstanceStatus = "Stopped"
	InstanceUnableToGet InstanceStatus = "UnableToGet"
	InstanceNone        InstanceStatus = ""
)

// TaskStatus is the state of a background task such as a deployment.
type TaskStatus string

const (
	TaskRunning   TaskStatus = "running"
	TaskSuccess   TaskStatus = "success"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
	TaskTimedOut  TaskStatus = "timed_out"
)

// TaskTypeInstanceDeployment is the only task type the backend reports.
const TaskTypeInstanceDeployment = "instance_deployment"

type Task struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Status    TaskStatus `json:"status"`
	UserID    *int       `json:"userId,omitempty"`
	CreatedAt string     `json:"createdAt"`
	UpdatedAt *string    `json:"updatedAt"`
}

// JoinedTask is a task with the name of the user who started it.
type JoinedTask struct {
	Task
	Username string `json:"username"`
}

type TaskOverview struct {
	SuccessCount   int         `json:"successCount"`
	UnsuccessCount int         `json:"unsuccessCount"`
	Latest         *JoinedTask `json:"latest,omitempty"`
}

// FormattedText carries the three renderings the game server reports.
type FormattedText struct {
	Raw   string `json:"raw"`
	Clean string `json:"clean"`
	HTML  string `json:"html"`
}

type PlayerSample struct {
	ID   string        `json:"id"`
	Name FormattedText `json:"name"`
}

// ServerStatus is the game server's status ping response.
type ServerStatus struct {
	Version struct {
		Name     FormattedText `json:"name"`
		Protocol int           `json:"protocol"`
	} `json:"version"`
	Players struct {
		Max    int            `json:"max"`
		Online int            `json:"online"`
		Sample []PlayerSample `json:"sample"`
	} `json:"players"`
	MOTD FormattedText `json:"motd"`
}

// ServerInfo is the game server summary. Data and OnlinePlayers are only set
// while the server is running.
type ServerInfo struct {
	Running       bool          `json:"running"`
	Data          *ServerStatus `json:"data,omitempty"`
	OnlinePlayers []string      `json:"onlinePlayers,omitempty"`
}

// OnlineCount returns the reported player count, zero when stopped.
func (s *ServerInfo) OnlineCount() int {
	if s == nil || !s.Running || s.Data == nil {
		return 0
	}
	return s.Data.Players.Online
}

type UserRole int

const (
	RoleEmpty UserRole = 0
	RoleUser  UserRole = 1
	RoleAdmin UserRole = 2
)

func (r UserRole) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAdmin:
		return "admin"
	default:
		return "none"
	}
}

type User struct {
	ID        int      `json:"id"`
	CreatedAt string   `json:"createdAt"`
	Username  string   `json:"username"`
	Role      UserRole `json:"role"`
}

// CreateInstanceRequest selects the machine to create.
type CreateInstanceRequest struct {
	ZoneID       string `json:"zoneId"`
	InstanceType string `json:"instanceType"`
	VSwitchID    string `json:"vswitchId"`
}

// QueryType names a read-only diagnostic query run on the instance.
type QueryType string

const (
	QueryScreenfetch      QueryType = "screenfetch"
	QueryServerSizes      QueryType = "get_server_sizes"
	QueryServerProperties QueryType = "get_server_properties"
	QueryCachedPlayers    QueryType = "get_cached_players"
	QueryOperators        QueryType = "get_ops"
)
