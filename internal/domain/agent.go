package domain

// AIRole identifies what an agent is asked to do
type AIRole string

const (
	RoleProductOwner AIRole = "product_owner"
	RoleEngineer     AIRole = "engineer"
	RoleReviewer     AIRole = "reviewer"
)

// AIAgent holds display metadata for an agent. It carries no behavior.
type AIAgent struct {
	Role  AIRole
	Name  string
	Emoji string
	Color string
}

// ProductOwner returns the agent that turns a request into instructions
func ProductOwner() AIAgent {
	return AIAgent{Role: RoleProductOwner, Name: "Product Owner AI", Emoji: "👔", Color: "blue"}
}

// Engineer returns the agent that implements instructions in a worktree
func Engineer() AIAgent {
	return AIAgent{Role: RoleEngineer, Name: "AI Engineer", Emoji: "👩‍💻", Color: "green"}
}

// Reviewer returns the reviewing agent
func Reviewer() AIAgent {
	return AIAgent{Role: RoleReviewer, Name: "Reviewer AI", Emoji: "👨‍🔬", Color: "purple"}
}

// SessionKey is the short agent type used when persisting session state
func (a AIAgent) SessionKey() string {
	switch a.Role {
	case RoleProductOwner:
		return "po"
	default:
		return string(a.Role)
	}
}
