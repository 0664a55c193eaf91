package mockbackend

import "numa/internal/domain"

// Seed loads a small demo pipeline: two users, one application, a pending
// and a clarifying requirement with an open question, and a solution under
// clarification.
func (s *Store) Seed() {
	alice := s.CreateUser(domain.User{Name: "alice", Email: "alice@example.com"})
	bob := s.CreateUser(domain.User{Name: "bob", Email: "bob@example.com"})
	app, _ := s.CreateApplication(domain.Application{
		Name:          "billing",
		Description:   "Invoicing service",
		Owner:         "payments",
		RepositoryURL: "https://git.example.com/payments/billing",
		AppID:         "billing-svc",
		CreatedBy:     domain.Int64(alice.ID),
	})
	_, _ = s.CreateRequirement(domain.Requirement{
		Title:         "CSV export",
		Description:   "Export invoices as CSV",
		UserID:        domain.Int64(alice.ID),
		ApplicationID: domain.Int64(app.ID),
	})
	req, _ := s.CreateRequirement(domain.Requirement{
		Title:         "Multi-currency",
		Description:   "Invoices in EUR and USD",
		UserID:        domain.Int64(alice.ID),
		ApplicationID: domain.Int64(app.ID),
	})
	_, _ = s.AssignRequirement(req.ID, bob.ID)
	q := domain.Question{Content: "Which exchange rate source?", CreatedBy: bob.ID}
	q.SetParent(domain.ParentRequirement, req.ID)
	_, _ = s.CreateQuestion(domain.ParentRequirement, q, bob.ID)
	_, _ = s.CreateSolution(domain.Solution{
		Title:         "Rates table",
		Description:   "Daily rates snapshot",
		RequirementID: req.ID,
		ApplicationID: domain.Int64(app.ID),
		CreatedBy:     bob.ID,
	})
}
