package frame

import (
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
)

var timeLayouts = []string{
	time.RFC3339, "2006-01-02", "2006/01/02", "02/01/2006", "01/02/2006",
	"2006-01-02 15:04", "2006-01-02 15:04:05", "1/2/2006 15:04", "1/2/2006 15:04:05",
}

func parseTimeMaybe(s string) bool {
	for _, l := range timeLayouts {
		if _, err := time.Parse(l, s); err == nil {
			return true
		}
	}
	return false
}

// kindVote narrows the possible kinds of a column one value at a time. Values
// are tested the same way the typed reader parses them, so an inferred int or
// real column never fails the typed pass.
type kindVote struct {
	seen     int
	distinct map[string]struct{}
	isInt    bool
	isReal   bool
	isUUID   bool
	isTime   bool

	// nonFinite counts NaN and Inf values, which load as missing.
	nonFinite int
}

func newKindVote() *kindVote {
	return &kindVote{distinct: map[string]struct{}{}, isInt: true, isReal: true, isUUID: true, isTime: true}
}

// maxDistinct caps level counting during inference.
const maxDistinct = 10000

func (v *kindVote) add(s string) {
	v.seen++
	if len(v.distinct) <= maxDistinct {
		v.distinct[s] = struct{}{}
	}
	if v.isInt {
		if _, err := strconv.ParseInt(s, 10, 64); err != nil {
			v.isInt = false
		}
	}
	if v.isReal {
		if f, err := strconv.ParseFloat(s, 64); err != nil {
			v.isReal = false
		} else if math.IsNaN(f) || math.IsInf(f, 0) {
			v.nonFinite++
		}
	}
	if v.isUUID {
		if _, err := uuid.Parse(s); err != nil {
			v.isUUID = false
		}
	}
	if v.isTime {
		v.isTime = parseTimeMaybe(s)
	}
}

func (v *kindVote) kind() Kind {
	switch {
	case v.seen == 0:
		return KindUnknown
	case v.isInt:
		return KindInt
	case v.isReal:
		return KindReal
	case v.isUUID:
		return KindUUID
	case v.isTime:
		return KindTime
	default:
		return KindEnum
	}
}
