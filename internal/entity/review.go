package entity

// Review is one normalized review row. Fields are passed through from the
// scraping service untouched; absent fields are empty strings.
type Review struct {
	ReviewLink string `json:"review_link"`
	Time       string `json:"time"`
	Rating     string `json:"rating"`
	Content    string `json:"content"`
}

// Columns returns the field values in export column order.
func (r Review) Columns() []string {
	return []string{r.ReviewLink, r.Time, r.Rating, r.Content}
}
