package models

import "time"

type User struct {
	Username     string     `json:"username"`
	Email        string     `json:"email,omitempty"`
	PasswordHash string     `json:"password_hash,omitempty"`
	Level        int        `json:"level"`
	Downloads    int        `json:"downloads"`
	MaxDownloads int        `json:"max_downloads"`
	JoinDate     *time.Time `json:"join_date,omitempty"`
	UpgradeDate  *time.Time `json:"upgrade_date,omitempty"`
}

// Public returns a copy safe to hand to the presentation layer.
func (u *User) Public() *User {
	if u == nil {
		return nil
	}
	pub := *u
	pub.PasswordHash = ""
	return &pub
}

// Remaining reports how many downloads the user has left this period.
// Never negative, even if the stored counter overshoots the ceiling.
func (u *User) Remaining() int {
	if u == nil {
		return 0
	}
	if r := u.MaxDownloads - u.Downloads; r > 0 {
		return r
	}
	return 0
}

type Level struct {
	ID           int      `json:"id"`
	Name         string   `json:"name"`
	PriceUSD     int      `json:"price_usd"`
	MaxDownloads int      `json:"max_downloads"`
	Features     []string `json:"features"`
}

// Free reports whether the tier can be activated without a payment reference.
func (l Level) Free() bool {
	return l.PriceUSD == 0
}

// Levels is the fixed tier ladder. Upgrades are only valid strictly upward.
var Levels = []Level{
	{
		ID:           1,
		Name:         "Level 1 - Free Starter",
		PriceUSD:     0,
		MaxDownloads: 3,
		Features: []string{
			"3 downloads per month",
			"Access to basic resources",
			"Community forum access",
			"Basic support",
		},
	},
	{
		ID:           2,
		Name:         "Level 2 - Premium",
		PriceUSD:     1,
		MaxDownloads: 20,
		Features: []string{
			"20+ downloads per month",
			"Access to premium resources",
			"Priority support",
			"Early access to new releases",
			"No ads",
		},
	},
	{
		ID:           3,
		Name:         "Level 3 - VIP",
		PriceUSD:     2,
		MaxDownloads: 80,
		Features: []string{
			"80+ downloads per month",
			"Access to all VIP resources",
			"Dedicated VIP support",
			"Exclusive VIP content",
			"Custom requests priority",
			"VIP badge and status",
		},
	},
}

// LevelByID returns the tier definition, or false for an unknown id.
func LevelByID(id int) (Level, bool) {
	for _, l := range Levels {
		if l.ID == id {
			return l, true
		}
	}
	return Level{}, false
}

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

var Categories = []Category{
	{ID: "minecraft", Name: "Minecraft"},
	{ID: "xenforo2", Name: "XenForo 2.X.X"},
	{ID: "xenforo1", Name: "XenForo 1.X.X"},
	{ID: "ips", Name: "IPS Suite"},
	{ID: "adobe", Name: "Adobe & GFX"},
	{ID: "wordpress", Name: "WordPress"},
	{ID: "whmcs", Name: "WHMCS"},
	{ID: "unity", Name: "Unity / UE Assets"},
	{ID: "misc", Name: "Misc & Other"},
}

// ValidCategory reports whether id names one of the fixed categories.
func ValidCategory(id string) bool {
	for _, c := range Categories {
		if c.ID == id {
			return true
		}
	}
	return false
}

type Resource struct {
	ID               int64     `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Author           string    `json:"author"`
	CategoryID       string    `json:"category_id"`
	Date             time.Time `json:"date"`
	UpdatedTimestamp int64     `json:"updated_timestamp"`
	Rating           float64   `json:"rating"`
	RatingsCount     int       `json:"ratings_count"`
	DownloadLink     string    `json:"download_link"`
	Logo             string    `json:"logo,omitempty"`
}

const (
	UrgencyLow    = "low"
	UrgencyNormal = "normal"
	UrgencyHigh   = "high"

	RequestStatusOpen = "open"
)

type Request struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CategoryID  string    `json:"category_id"`
	Urgency     string    `json:"urgency"`
	Requester   string    `json:"requester"`
	Date        time.Time `json:"date"`
	Status      string    `json:"status"`
	Votes       int       `json:"votes"`
}

// CatalogQuery describes one filtered, sorted, paged view of the catalog.
// It is transient: built by the caller per render, never persisted.
type CatalogQuery struct {
	SearchText string `json:"search_text"`
	CategoryID string `json:"category_id"`
	SortKey    string `json:"sort_key"`
	PageNumber int    `json:"page_number"`
}

type CatalogPage struct {
	Page       []Resource `json:"page"`
	TotalPages int        `json:"total_pages"`
	TotalCount int        `json:"total_count"`
}

type CategoryCount struct {
	Category Category `json:"category"`
	Count    int      `json:"count"`
}

type Contributor struct {
	Username string `json:"username"`
	Uploads  int    `json:"uploads"`
}
