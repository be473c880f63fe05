package entity

const (
	PlaceholderDisplayName = "User"
	DefaultAvatarURL       = "/static/default-avatar.png"
	PlaceholderPostTitle   = "your recipe"
)

// Profile is read-only display data owned by the users collection.
type Profile struct {
	UserID      string `json:"user_id" firestore:"-"`
	DisplayName string `json:"display_name" firestore:"username"`
	AvatarURL   string `json:"avatar_url" firestore:"avatarURL"`
}

// PlaceholderProfile is used whenever a profile cannot be fetched.
func PlaceholderProfile(userID string) *Profile {
	return &Profile{
		UserID:      userID,
		DisplayName: PlaceholderDisplayName,
		AvatarURL:   DefaultAvatarURL,
	}
}
