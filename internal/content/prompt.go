package content

import (
	"fmt"
	"strings"
)

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func subjectPrompt(p SubjectParams) string {
	return fmt.Sprintf(`Generate a professional email subject line for a job application to %s.
Job role: %s

Requirements:
- Professional and attention-grabbing
- Specific to the company if company name is provided
- Under 60 characters
- Clear purpose (job application/referral request)
- No quotes, brackets, or special formatting
- Direct and to the point

Return ONLY the subject line text, nothing else.`,
		orDefault(p.Company, "a company"),
		orDefault(p.JobRole, "Internship/Entry-level opportunity"),
	)
}

func emailPrompt(p EmailParams) string {
	var extra strings.Builder
	if p.Highlights != "" {
		fmt.Fprintf(&extra, "\nCandidate Highlights:\n%s\n", p.Highlights)
	}
	if p.ResumeText != "" {
		resume := []rune(p.ResumeText)
		if len(resume) > maxResumeChars {
			resume = resume[:maxResumeChars]
		}
		fmt.Fprintf(&extra, "\nCandidate Background (from resume):\n%s\n", string(resume))
	}

	return fmt.Sprintf(`Generate a professional, personalized cold email for a job application with the following details:

Recipient: %s
Company: %s
Job Role: %s
%s
Requirements:
1. Professional and respectful tone
2. Concise (150-200 words maximum)
3. Highlight relevant skills and experience naturally
4. Express genuine interest in the company
5. Include a clear call-to-action (request for consideration/referral)
6. Personalized to the recipient and company
7. Warm and approachable, not overly formal
8. Start with a proper greeting
9. End with professional closing

IMPORTANT: Return ONLY the email body text. Do NOT include:
- Subject line
- Email signature with contact details (the signature will be added separately)
- Any meta-commentary or explanations

Just return the email content from greeting to closing.`,
		orDefault(p.Name, "Hiring Manager"),
		orDefault(p.Company, "the company"),
		orDefault(p.JobRole, "any suitable position or internship"),
		extra.String(),
	)
}
