package pleper

import (
	"encoding/json"
	"strconv"

	"github.com/joseph-ayodele/reviews-extractor/constants"
	"github.com/joseph-ayodele/reviews-extractor/internal/entity"
)

const finishedStatus = constants.UpstreamFinished

// FlattenReviews walks results[ReviewsGroupKey][*].results[*] in order.
// A missing or non-object container yields no reviews, a group whose "results" is not an
// array is skipped, and a review with missing or odd fields still produces a row.
func FlattenReviews(container any) []entity.Review {
	reviews := make([]entity.Review, 0)

	byKey, ok := container.(map[string]any)
	if !ok {
		return reviews
	}
	groups, ok := byKey[ReviewsGroupKey].([]any)
	if !ok {
		return reviews
	}
	for _, g := range groups {
		group, ok := g.(map[string]any)
		if !ok {
			continue
		}
		items, ok := group["results"].([]any)
		if !ok {
			continue
		}
		for _, item := range items {
			fields, _ := item.(map[string]any)
			reviews = append(reviews, entity.Review{
				ReviewLink: stringify(fields["review_link"]),
				Time:       stringify(fields["time"]),
				Rating:     stringify(fields["rating"]),
				Content:    stringify(fields["content"]),
			})
		}
	}
	return reviews
}

// stringify renders a decoded JSON value as text. null and absent values become "".
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func firstString(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
