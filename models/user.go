package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Preferences are the user's global notification switches
type Preferences struct {
	EmailNotifications     bool `bson:"email_notifications" json:"email_notifications"`
	MessagingNotifications bool `bson:"messaging_notifications" json:"messaging_notifications"`
}

// User represents the owner of trackings. Only contact data is read here.
type User struct {
	ID    primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name  string             `bson:"name" json:"name"`
	Email string             `bson:"email" json:"email"`
	// Phone is the messaging handle; the Telegram transport expects a chat id here.
	Phone       string      `bson:"phone,omitempty" json:"phone,omitempty"`
	Preferences Preferences `bson:"preferences" json:"preferences"`
}

// DueItem is a tracking joined with its product and owner.
// Product or User is nil when the reference no longer resolves.
type DueItem struct {
	Tracking *Tracking
	Product  *Product
	User     *User
}

// Orphaned reports whether the item misses its user or product
func (d *DueItem) Orphaned() bool {
	return d.Product == nil || d.User == nil
}
