package routing

import "time"

// Device is a registered push endpoint for a user: one provider token plus
// the notification permission the device shell last reported.
type Device struct {
	Token      string           `json:"token"`
	Platform   string           `json:"platform"` // "android", "ios" or "web"
	Permission PermissionStatus `json:"permission"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// AlertsEnabled reports whether the device may receive visible notifications.
// A denied or undetermined permission degrades to data-only delivery.
func (d Device) AlertsEnabled() bool {
	return d.Permission == PermissionGranted
}
