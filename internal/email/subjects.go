package email

const (
	subjectUpdateFmt = "[Spotter Portal] %s"

	// CTAViewLead labels the button linking to a lead.
	CTAViewLead = "View lead"
)
