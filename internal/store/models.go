package store

import (
	"slices"
	"time"

	"ecocivic/api/internal/badge"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

type TreeType string

const (
	TreeMango   TreeType = "mango"
	TreeNeem    TreeType = "neem"
	TreeBanyan  TreeType = "banyan"
	TreePeepal  TreeType = "peepal"
	TreeTeak    TreeType = "teak"
	TreeBamboo  TreeType = "bamboo"
	TreeCoconut TreeType = "coconut"
	TreeOther   TreeType = "other"
)

var TreeTypes = []TreeType{TreeMango, TreeNeem, TreeBanyan, TreePeepal, TreeTeak, TreeBamboo, TreeCoconut, TreeOther}

func (t TreeType) Valid() bool {
	return slices.Contains(TreeTypes, t)
}

// TreeStatus only ever moves forward: planted, growing, healthy.
type TreeStatus string

const (
	TreePlanted TreeStatus = "planted"
	TreeGrowing TreeStatus = "growing"
	TreeHealthy TreeStatus = "healthy"
)

var TreeStatuses = []TreeStatus{TreePlanted, TreeGrowing, TreeHealthy}

func (s TreeStatus) Valid() bool {
	return slices.Contains(TreeStatuses, s)
}

// Stage is the position of s in the growth sequence, or -1 when unknown.
func (s TreeStatus) Stage() int {
	return slices.Index(TreeStatuses, s)
}

type IssueCategory string

const (
	IssueFallenTree      IssueCategory = "fallenTree"
	IssueOpenManhole     IssueCategory = "openManhole"
	IssueFloodedRoad     IssueCategory = "floodedRoad"
	IssueGarbageOverflow IssueCategory = "garbageOverflow"
	IssueOther           IssueCategory = "other"
)

var IssueCategories = []IssueCategory{IssueFallenTree, IssueOpenManhole, IssueFloodedRoad, IssueGarbageOverflow, IssueOther}

func (c IssueCategory) Valid() bool {
	return slices.Contains(IssueCategories, c)
}

type IssueStatus string

const (
	IssueReported IssueStatus = "reported"
	IssueInReview IssueStatus = "inReview"
	IssueResolved IssueStatus = "resolved"
)

var IssueStatuses = []IssueStatus{IssueReported, IssueInReview, IssueResolved}

func (s IssueStatus) Valid() bool {
	return slices.Contains(IssueStatuses, s)
}

type User struct {
	ID        string        `json:"id"`
	Username  string        `json:"username"`
	Role      Role          `json:"role"`
	Points    int           `json:"points"`
	Badges    []badge.Badge `json:"badges"`
	Location  string        `json:"location,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

func (u User) HasBadge(b badge.Badge) bool {
	return slices.Contains(u.Badges, b)
}

// Clone returns a copy that shares no slices with u.
func (u User) Clone() User {
	u.Badges = append([]badge.Badge{}, u.Badges...)
	return u
}

type Tree struct {
	ID             string     `json:"id"`
	UserID         string     `json:"userId"`
	Username       string     `json:"username"`
	Type           TreeType   `json:"type"`
	Status         TreeStatus `json:"status"`
	Location       string     `json:"location"`
	PhotoURL       string     `json:"photoUrl"`
	PlantedDate    time.Time  `json:"plantedDate"`
	LastUpdateDate time.Time  `json:"lastUpdateDate"`
	CreatedAt      time.Time  `json:"createdAt"`
}

type TreeUpdate struct {
	ID        string    `json:"id"`
	TreeID    string    `json:"treeId"`
	PhotoURL  string    `json:"photoUrl"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type CivicIssue struct {
	ID          string        `json:"id"`
	UserID      string        `json:"userId"`
	Username    string        `json:"username"`
	Category    IssueCategory `json:"category"`
	Description string        `json:"description"`
	Location    string        `json:"location"`
	PhotoURL    string        `json:"photoUrl"`
	Status      IssueStatus   `json:"status"`
	IsEmergency bool          `json:"isEmergency"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

type Challenge struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Points       int       `json:"points"`
	StartDate    time.Time `json:"startDate"`
	EndDate      time.Time `json:"endDate"`
	Participants []string  `json:"participants"`
	IsActive     bool      `json:"isActive"`
}

func (c Challenge) HasParticipant(userID string) bool {
	return slices.Contains(c.Participants, userID)
}
