package policy

// Action is the closed set of operations evaluated against a resource.
type Action string

const (
	ActionRead               Action = "read"
	ActionList               Action = "list"
	ActionCreate             Action = "create"
	ActionUpdate             Action = "update"
	ActionDelete             Action = "delete"
	ActionRegisterSelf       Action = "registerSelf"
	ActionManageParticipants Action = "manageParticipants"
	ActionViewStatistics     Action = "viewStatistics"
)
