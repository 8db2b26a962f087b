package model

// LatLng は緯度経度の組を表す。
type LatLng struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lng float64 `json:"lng" bson:"lng"`
}

// Valid は座標が有効範囲内かどうかを返す。
func (l LatLng) Valid() bool {
	return l.Lat >= -90 && l.Lat <= 90 && l.Lng >= -180 && l.Lng <= 180
}

// Photo はレストラン写真の参照を表す。
type Photo struct {
	Reference string `json:"reference" bson:"reference"`
	Width     int    `json:"width,omitempty" bson:"width,omitempty"`
	Height    int    `json:"height,omitempty" bson:"height,omitempty"`
}

// Restaurant は検索結果のレストランを表す。
// 単体では永続化されず、ランチ選択時にスナップショットとして埋め込まれる。
type Restaurant struct {
	ID       string   `json:"id" bson:"id"`
	Name     string   `json:"name" bson:"name"`
	Address  string   `json:"address,omitempty" bson:"address,omitempty"`
	Location *LatLng  `json:"location,omitempty" bson:"location,omitempty"`
	Types    []string `json:"types,omitempty" bson:"types,omitempty"`
	// OpenNow は営業中かどうか。nilは不明。
	OpenNow     *bool    `json:"open_now,omitempty" bson:"openNow,omitempty"`
	ReviewCount int      `json:"review_count" bson:"reviewCount"`
	Rating      *float64 `json:"rating,omitempty" bson:"rating,omitempty"`
	Website     string   `json:"website,omitempty" bson:"website,omitempty"`
	Phone       string   `json:"phone,omitempty" bson:"phone,omitempty"`
	Photos      []Photo  `json:"photos,omitempty" bson:"photos,omitempty"`
}

// Clone はポインタとスライスを含めて複製したRestaurantを返す。
// ランチのスナップショットが元の検索結果の変更を受けないようにする。
func (r Restaurant) Clone() Restaurant {
	c := r
	if r.Location != nil {
		loc := *r.Location
		c.Location = &loc
	}
	if r.OpenNow != nil {
		open := *r.OpenNow
		c.OpenNow = &open
	}
	if r.Rating != nil {
		rating := *r.Rating
		c.Rating = &rating
	}
	if r.Types != nil {
		c.Types = append([]string(nil), r.Types...)
	}
	if r.Photos != nil {
		c.Photos = append([]Photo(nil), r.Photos...)
	}
	return c
}
