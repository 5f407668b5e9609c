package types

import (
	"time"

	"github.com/google/uuid"
)

type Device string

const (
	DeviceDesktop Device = "desktop"
	DeviceMobile  Device = "mobile"
	DeviceTablet  Device = "tablet"
	DeviceUnknown Device = "unknown"
)

// Visit is the raw request data captured on the redirect path.
type Visit struct {
	LinkID    uuid.UUID `json:"link_id"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	Referrer  string    `json:"referrer"`
	At        time.Time `json:"at"`
}

// ClickEvent is an immutable record of one redirect. Empty optional
// attributes (browser, os, referrer, country, city) are stored as NULL.
type ClickEvent struct {
	ID        uuid.UUID `json:"id" db:"id"`
	LinkID    uuid.UUID `json:"link_id" db:"link_id"`
	IP        string    `json:"ip" db:"ip"`
	UserAgent string    `json:"user_agent" db:"user_agent"`
	Device    Device    `json:"device" db:"device"`
	Browser   string    `json:"browser,omitempty" db:"browser"`
	OS        string    `json:"os,omitempty" db:"os"`
	Referrer  string    `json:"referrer,omitempty" db:"referrer"`
	Country   string    `json:"country,omitempty" db:"country"`
	City      string    `json:"city,omitempty" db:"city"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// GroupField names an event attribute that analytics can group by.
type GroupField string

const (
	GroupByDevice   GroupField = "device"
	GroupByBrowser  GroupField = "browser"
	GroupByReferrer GroupField = "referrer"
	GroupByCountry  GroupField = "country"
)

// GroupCount is the number of events sharing one value of a GroupField.
type GroupCount struct {
	Value string
	Count int64
}

type DateCount struct {
	Date   string `json:"date"`
	Clicks int64  `json:"clicks"`
}

type DeviceCount struct {
	Device string `json:"device"`
	Count  int64  `json:"count"`
}

type BrowserCount struct {
	Browser string `json:"browser"`
	Count   int64  `json:"count"`
}

type ReferrerCount struct {
	Referrer string `json:"referrer"`
	Count    int64  `json:"count"`
}

type CountryCount struct {
	Country string `json:"country"`
	Count   int64  `json:"count"`
}

type AnalyticsSummary struct {
	TotalClicks    int64           `json:"totalClicks"`
	UniqueVisitors int64           `json:"uniqueVisitors"`
	ClicksByDate   []DateCount     `json:"clicksByDate"`
	DeviceStats    []DeviceCount   `json:"deviceStats"`
	BrowserStats   []BrowserCount  `json:"browserStats"`
	TopReferrers   []ReferrerCount `json:"topReferrers"`
	CountryStats   []CountryCount  `json:"countryStats"`
}
