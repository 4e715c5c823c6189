package domain

import "time"

// Agent models a support agent account.
type Agent struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Actor returns the lifecycle actor for this agent.
func (a *Agent) Actor() Actor {
	return Actor{Kind: SenderAgent, Identity: a.ID, Name: a.Name}
}
