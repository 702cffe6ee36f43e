package transfer

type CreateTweetRequest struct {
	Text          string      `json:"text"`
	Media         *TweetMedia `json:"media,omitempty"`
	ReplySettings string      `json:"reply_settings,omitempty"`
	Geo           *TweetGeo   `json:"geo,omitempty"`
}

type TweetMedia struct {
	MediaIDs []string `json:"media_ids"`
}

type TweetGeo struct {
	PlaceID string `json:"place_id"`
}

type CreateTweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

type MediaUploadResponse struct {
	MediaID       int64  `json:"media_id"`
	MediaIDString string `json:"media_id_string"`
}

// MetricGroup is the union of counters any metric group may carry.
type MetricGroup struct {
	LikeCount       int64 `json:"like_count"`
	RetweetCount    int64 `json:"retweet_count"`
	QuoteCount      int64 `json:"quote_count"`
	ReplyCount      int64 `json:"reply_count"`
	ImpressionCount int64 `json:"impression_count"`
}

// TweetMetrics holds the groups returned for one tweet. Any group may be absent.
type TweetMetrics struct {
	ID               string       `json:"id"`
	PublicMetrics    *MetricGroup `json:"public_metrics,omitempty"`
	NonPublicMetrics *MetricGroup `json:"non_public_metrics,omitempty"`
	OrganicMetrics   *MetricGroup `json:"organic_metrics,omitempty"`
}

type TweetLookupResponse struct {
	Data   *TweetMetrics `json:"data"`
	Errors []XAPIError   `json:"errors"`
}

type XAPIError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Type   string `json:"type"`
	Status int    `json:"status"`
}
