package catalog

import "github.com/pybroo/pybroo/internal/models"

// DenyReason is the machine-readable reason a download was refused.
type DenyReason string

const (
	ReasonNotAuthenticated DenyReason = "not_authenticated"
	ReasonNoDownloadLink   DenyReason = "no_download_link"
	ReasonQuotaExceeded    DenyReason = "quota_exceeded"
)

// Decision is the outcome of the download authorization gate.
type Decision struct {
	Approved bool       `json:"approved"`
	Reason   DenyReason `json:"reason,omitempty"`
}

func approved() Decision           { return Decision{Approved: true} }
func denied(r DenyReason) Decision { return Decision{Reason: r} }

// Authorize decides whether user may download resource. It is a pure
// function with no side effects: consuming the quota on approval is the
// caller's responsibility, exactly once per approved download. Rules are
// checked in order, so an anonymous user over quota is still reported as
// not authenticated.
func Authorize(user *models.User, resource *models.Resource) Decision {
	if user == nil {
		return denied(ReasonNotAuthenticated)
	}
	if resource == nil || resource.DownloadLink == "" {
		return denied(ReasonNoDownloadLink)
	}
	if user.Downloads >= user.MaxDownloads {
		return denied(ReasonQuotaExceeded)
	}
	return approved()
}
