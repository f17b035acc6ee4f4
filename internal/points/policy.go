// Package points holds the pure point-economy rules: what posting a link
// costs, what each interaction pays out, and the inactivity thresholds. No
// I/O, no side effects; everything stateful lives in the ledger.
package points

import (
	"strconv"
	"strings"
	"time"
)

const (
	// LinkPostCost is debited atomically when a link is published.
	LinkPostCost int64 = 1000

	// InactivityWarnAfter is how long a user may stay idle before the
	// warning sweep flags them.
	InactivityWarnAfter = 48 * time.Hour

	// InactivityPenaltyAfter is how long a user may stay idle before the
	// penalty sweep starts deducting points.
	InactivityPenaltyAfter = 72 * time.Hour

	// InactivityPenalty is deducted on every penalty sweep the user is
	// still past the threshold.
	InactivityPenalty int64 = 100
)

// ActionKind is the closed set of link interactions that pay out a reward.
// ActionUnknown is a valid member: unrecognized callback data parses to it
// and earns nothing rather than erroring.
type ActionKind int

const (
	ActionUnknown ActionKind = iota
	ActionLike
	ActionComment
	ActionRepost
)

func (a ActionKind) String() string {
	switch a {
	case ActionLike:
		return "like"
	case ActionComment:
		return "comment"
	case ActionRepost:
		return "repost"
	default:
		return "unknown"
	}
}

// CanAffordPost reports whether a balance covers the posting cost.
func CanAffordPost(balance int64) bool {
	return balance >= LinkPostCost
}

// RewardFor returns the payout for an interaction. Unknown kinds earn zero.
func RewardFor(a ActionKind) int64 {
	switch a {
	case ActionLike:
		return 200
	case ActionComment:
		return 350
	case ActionRepost:
		return 500
	default:
		return 0
	}
}

// ParseAction decodes callback data of the form "<action>_<linkID>". It fails
// closed: anything that does not match a known action parses as ActionUnknown
// with ok=false, and the caller treats the reward as zero.
func ParseAction(data string) (kind ActionKind, linkID int64, ok bool) {
	idx := strings.LastIndex(data, "_")
	if idx <= 0 || idx == len(data)-1 {
		return ActionUnknown, 0, false
	}

	linkID, err := strconv.ParseInt(data[idx+1:], 10, 64)
	if err != nil {
		return ActionUnknown, 0, false
	}

	switch data[:idx] {
	case "like":
		kind = ActionLike
	case "comment":
		kind = ActionComment
	case "repost":
		kind = ActionRepost
	default:
		return ActionUnknown, linkID, false
	}
	return kind, linkID, true
}

// CallbackData renders the inline-button payload for an action on a link.
func CallbackData(a ActionKind, linkID int64) string {
	return a.String() + "_" + strconv.FormatInt(linkID, 10)
}
