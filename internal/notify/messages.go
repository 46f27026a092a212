package notify

import (
	"fmt"
	"time"
)

// Message is a rendered subject and body pair.
type Message struct {
	Subject string
	Body    string
}

// VerificationCode renders the OTP email.
func VerificationCode(code string, ttl time.Duration) Message {
	return Message{
		Subject: "Your Spot & Sort verification code",
		Body: fmt.Sprintf(
			"Your verification code is %s.\nIt expires in %d minutes. If you did not request it, ignore this email.",
			code, int(ttl.Minutes()),
		),
	}
}

// IssueReported renders the confirmation sent once a report is stored.
func IssueReported(ticketID string) Message {
	return Message{
		Subject: fmt.Sprintf("Issue %s reported", ticketID),
		Body: fmt.Sprintf(
			"Thank you for your report. Your ticket ID is %s.\nUse it to track progress at any time.",
			ticketID,
		),
	}
}

// IssueStatusChanged renders the update sent to the reporter on a transition.
func IssueStatusChanged(ticketID, from, to string) Message {
	body := fmt.Sprintf("The status of issue %s changed from %s to %s.", ticketID, from, to)
	if to == "Awaiting Verification" {
		body += "\nPlease confirm the fix so the issue can be closed."
	}
	return Message{
		Subject: fmt.Sprintf("Issue %s is now %s", ticketID, to),
		Body:    body,
	}
}
