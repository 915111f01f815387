package user

// User is an author on the platform. APIKey authenticates requests and is
// never serialised.
type User struct {
	ID     int64  `db:"id" json:"id"`
	Name   string `db:"name" json:"name"`
	APIKey string `db:"api_key" json:"-"`
}

// Follow is a directed subscription: FollowerID reads FollowingID's tweets.
type Follow struct {
	ID          int64 `db:"id" json:"id"`
	FollowerID  int64 `db:"follower_id" json:"follower_id"`
	FollowingID int64 `db:"following_id" json:"following_id"`
}

// Summary is the short form of a user embedded in other payloads.
type Summary struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Profile is a user with both sides of the follow graph.
type Profile struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Followers []Summary `json:"followers"`
	Following []Summary `json:"following"`
}

// Summary returns the short form of u.
func (u User) Summary() Summary {
	return Summary{ID: u.ID, Name: u.Name}
}
