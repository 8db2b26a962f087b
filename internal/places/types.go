package places

// Places APIの応答はフィールドの欠落が多いため、任意項目はすべてポインタで受ける。
// 欠落と0値を区別したまま呼び出し側へ渡す。

// NearbySearchResponse は nearbysearch エンドポイントの応答。
type NearbySearchResponse struct {
	Results       []PlaceResult `json:"results"`
	Status        string        `json:"status"`
	ErrorMessage  string        `json:"error_message,omitempty"`
	NextPageToken string        `json:"next_page_token,omitempty"`
}

// DetailsResponse は details エンドポイントの応答。
type DetailsResponse struct {
	Result       *PlaceResult `json:"result"`
	Status       string       `json:"status"`
	ErrorMessage string       `json:"error_message,omitempty"`
}

// PlaceResult は1件の店舗情報。
type PlaceResult struct {
	PlaceID              *string       `json:"place_id"`
	Name                 *string       `json:"name"`
	Vicinity             *string       `json:"vicinity"`
	FormattedAddress     *string       `json:"formatted_address"`
	Geometry             *Geometry     `json:"geometry"`
	Types                []string      `json:"types"`
	OpeningHours         *OpeningHours `json:"opening_hours"`
	Rating               *float64      `json:"rating"`
	UserRatingsTotal     *int          `json:"user_ratings_total"`
	Website              *string       `json:"website"`
	FormattedPhoneNumber *string       `json:"formatted_phone_number"`
	Photos               []PhotoResult `json:"photos"`
}

// Geometry は店舗の位置情報。
type Geometry struct {
	Location *Location `json:"location"`
}

// Location は緯度経度。
type Location struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// OpeningHours は営業時間情報。open_now以外は使用しない。
type OpeningHours struct {
	OpenNow *bool `json:"open_now"`
}

// PhotoResult は写真参照。
type PhotoResult struct {
	PhotoReference *string `json:"photo_reference"`
	Width          *int    `json:"width"`
	Height         *int    `json:"height"`
}

// Places APIのステータス値
const (
	StatusOK          = "OK"
	StatusZeroResults = "ZERO_RESULTS"
	StatusNotFound    = "NOT_FOUND"
)
