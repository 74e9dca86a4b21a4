package ctb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pannnnl/hkbus-eta/internal/fetch"
	"github.com/pannnnl/hkbus-eta/internal/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/route/CTB", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"co":"CTB","route":"1","orig_tc":"中環","orig_en":"Central","dest_tc":"跑馬地","dest_en":"Happy Valley"}]}`))
	})
	mux.HandleFunc("/route-stop/CTB/1/outbound", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[
			{"co":"CTB","route":"1","dir":"O","seq":1,"stop":"001001"},
			{"co":"CTB","route":"1","dir":"I","seq":1,"stop":"009009"},
			{"co":"CTB","route":"1","dir":"O","seq":2,"stop":"001002"}
		]}`))
	})
	mux.HandleFunc("/stop/001001", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"stop":"001001","name_tc":"中環","name_en":"Central","lat":"22.28","long":"114.15"}}`))
	})
	mux.HandleFunc("/stop/404404", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{}}`))
	})
	mux.HandleFunc("/eta/CTB/001001/1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[
			{"co":"CTB","route":"1","dir":"O","seq":1,"stop":"001001","dest_tc":"跑馬地","eta_seq":1,"eta":"2024-05-01T10:05:00+08:00","rmk_tc":""},
			{"co":"CTB","route":"1","dir":"I","seq":12,"stop":"001001","dest_tc":"中環","eta_seq":1,"eta":"2024-05-01T10:02:00+08:00","rmk_tc":""},
			{"co":"CTB","route":"1","dir":"O","seq":1,"stop":"001001","dest_tc":"跑馬地","eta_seq":2,"eta":"","rmk_tc":""}
		]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	getter := fetch.NewClient(srv.Client(), fetch.Options{MaxAttempts: 1, Timeout: time.Second})
	return New(getter, srv.URL, "")
}

func TestListRoutes_ExpandsDirections(t *testing.T) {
	c := newTestClient(t)

	routes, err := c.ListRoutes(context.Background())
	if err != nil {
		t.Fatalf("ListRoutes() error = %v", err)
	}
	if len(routes) != 2 {
		t.Fatalf("ListRoutes() returned %d routes, expected 2", len(routes))
	}
	out, in := routes[0], routes[1]
	if out.Direction != models.Outbound || out.OriginName != "中環" || out.DestinationName != "跑馬地" {
		t.Errorf("outbound = %+v", out)
	}
	if in.Direction != models.Inbound || in.OriginName != "跑馬地" || in.DestinationNameEN != "Central" {
		t.Errorf("inbound = %+v", in)
	}
	if out.ServiceVariant != models.DefaultServiceVariant {
		t.Errorf("ServiceVariant = %q, expected default", out.ServiceVariant)
	}
}

func TestDirectionalStops_FiltersDirection(t *testing.T) {
	c := newTestClient(t)
	route := models.Route{Code: "1", Operator: models.OperatorCTB}

	links, err := c.DirectionalStops(context.Background(), route, models.Outbound)
	if err != nil {
		t.Fatalf("DirectionalStops() error = %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("got %d links, expected 2", len(links))
	}
	for _, l := range links {
		if l.StopID == "009009" {
			t.Error("inbound stop leaked into outbound result")
		}
	}
}

func TestStopMetadata(t *testing.T) {
	c := newTestClient(t)

	stop, err := c.StopMetadata(context.Background(), "001001")
	if err != nil {
		t.Fatalf("StopMetadata() error = %v", err)
	}
	if stop == nil || stop.DisplayNameEN != "Central" || stop.Operator != models.OperatorCTB {
		t.Errorf("StopMetadata() = %+v", stop)
	}

	missing, err := c.StopMetadata(context.Background(), "404404")
	if err != nil || missing != nil {
		t.Errorf("StopMetadata(unknown) = %+v, %v; expected nil, nil", missing, err)
	}
}

func TestETAs(t *testing.T) {
	c := newTestClient(t)

	entries, err := c.ETAs(context.Background(), "001001", models.Route{Code: "1", Operator: models.OperatorCTB})
	if err != nil {
		t.Fatalf("ETAs() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ETAs() returned %d entries, expected 2", len(entries))
	}
	if got := models.FilterDirection(entries, models.Outbound); len(got) != 1 {
		t.Errorf("outbound entries = %d, expected 1", len(got))
	}
}
