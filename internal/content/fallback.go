package content

import "fmt"

// FallbackSubject is used when neither the model nor the request supplies a subject.
func FallbackSubject(company, jobRole string) string {
	switch {
	case company != "" && jobRole != "":
		return fmt.Sprintf("Application for %s at %s", jobRole, company)
	case company != "":
		return fmt.Sprintf("Seeking Opportunities at %s", company)
	default:
		return "Seeking Internship/Job Opportunity & Referral Consideration"
	}
}

// FallbackEmail is used when neither the model nor the request supplies a body.
func FallbackEmail(name, company, jobRole string) string {
	org := orDefault(company, "your organization")
	return fmt.Sprintf(`Dear %s,

I hope this message finds you well.

I am reaching out to express my interest in %s at %s. I have developed strong skills in full-stack development and data analytics.

I have hands-on experience working with modern technologies and am eager to contribute to your team. I believe my technical skills and enthusiasm for learning would make me a valuable addition to %s.

I would greatly appreciate the opportunity to discuss how I can contribute to your team, or if you could provide any guidance on relevant openings.

Thank you for your time and consideration.

Warm regards`,
		orDefault(name, "Hiring Manager"),
		orDefault(jobRole, "opportunities"),
		org,
		org,
	)
}
