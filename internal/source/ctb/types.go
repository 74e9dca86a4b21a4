package ctb

import "github.com/pannnnl/hkbus-eta/internal/source"

type routeRecord struct {
	Company string `json:"co"`
	Route   string `json:"route"`
	OrigTC  string `json:"orig_tc"`
	OrigEN  string `json:"orig_en"`
	DestTC  string `json:"dest_tc"`
	DestEN  string `json:"dest_en"`
}

type routeStopRecord struct {
	Company string     `json:"co"`
	Route   string     `json:"route"`
	Dir     string     `json:"dir"`
	Seq     source.Int `json:"seq"`
	Stop    string     `json:"stop"`
}

type stopRecord struct {
	Stop   string       `json:"stop"`
	NameTC string       `json:"name_tc"`
	NameEN string       `json:"name_en"`
	Lat    source.Float `json:"lat"`
	Long   source.Float `json:"long"`
}

type etaRecord struct {
	Company  string     `json:"co"`
	Route    string     `json:"route"`
	Dir      string     `json:"dir"`
	Seq      source.Int `json:"seq"`
	Stop     string     `json:"stop"`
	DestTC   string     `json:"dest_tc"`
	DestEN   string     `json:"dest_en"`
	EtaSeq   source.Int `json:"eta_seq"`
	ETA      *string    `json:"eta"`
	RemarkTC string     `json:"rmk_tc"`
	RemarkEN string     `json:"rmk_en"`
}
