package kmb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pannnnl/hkbus-eta/internal/fetch"
	"github.com/pannnnl/hkbus-eta/internal/models"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/route", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"type":"RouteList","data":[
			{"route":"1A","bound":"O","service_type":"1","orig_tc":"中秀茂坪","orig_en":"SAU MAU PING","dest_tc":"尖沙咀碼頭","dest_en":"STAR FERRY"},
			{"route":"1A","bound":"I","service_type":"1","orig_tc":"尖沙咀碼頭","orig_en":"STAR FERRY","dest_tc":"中秀茂坪","dest_en":"SAU MAU PING"},
			{"route":"1A","bound":"O","service_type":"2","orig_tc":"中秀茂坪","dest_tc":"旺角"},
			{"route":"X","bound":"?","service_type":"1"}
		]}`))
	})
	mux.HandleFunc("/stop", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[
			{"stop":"A1","name_tc":"站一","name_en":"Stop One","lat":"22.31","long":"114.17"},
			{"stop":"","name_tc":"broken"}
		]}`))
	})
	mux.HandleFunc("/route-stop/1A/outbound/1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[
			{"route":"1A","bound":"O","service_type":"1","seq":"2","stop":"B2"},
			{"route":"1A","bound":"O","service_type":"1","seq":"1","stop":"A1"}
		]}`))
	})
	mux.HandleFunc("/route-stop/1A/inbound/1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	})
	mux.HandleFunc("/eta/A1/1A/1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[
			{"co":"KMB","route":"1A","dir":"O","service_type":1,"seq":1,"dest_tc":"尖沙咀碼頭","eta_seq":1,"eta":"2024-05-01T10:05:00+08:00","rmk_tc":""},
			{"co":"KMB","route":"1A","dir":"O","service_type":1,"seq":1,"dest_tc":"尖沙咀碼頭","eta_seq":2,"eta":null,"rmk_tc":"最後班次已開出"},
			{"co":"KMB","route":"1A","dir":"I","service_type":1,"seq":9,"dest_tc":"中秀茂坪","eta_seq":1,"eta":"2024-05-01T10:09:00+08:00","rmk_tc":""},
			{"co":"KMB","route":"1A","dir":"O","service_type":2,"seq":1,"dest_tc":"旺角","eta_seq":1,"eta":"2024-05-01T10:07:00+08:00","rmk_tc":""}
		]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(srv *httptest.Server) *Client {
	getter := fetch.NewClient(srv.Client(), fetch.Options{MaxAttempts: 1, Timeout: time.Second})
	return New(getter, srv.URL)
}

func TestListRoutes(t *testing.T) {
	c := newTestClient(newTestServer(t))

	routes, err := c.ListRoutes(context.Background())
	if err != nil {
		t.Fatalf("ListRoutes() error = %v", err)
	}
	if len(routes) != 3 {
		t.Fatalf("ListRoutes() returned %d routes, expected 3", len(routes))
	}
	if routes[1].Direction != models.Inbound {
		t.Errorf("routes[1].Direction = %v, expected inbound", routes[1].Direction)
	}
	if routes[2].ServiceVariant != "2" || !routes[2].Special() {
		t.Errorf("routes[2] = %+v, expected special variant 2", routes[2])
	}
	if routes[0].OriginNameEN != "SAU MAU PING" || routes[0].Operator != models.OperatorKMB {
		t.Errorf("routes[0] = %+v", routes[0])
	}
}

func TestListStops(t *testing.T) {
	c := newTestClient(newTestServer(t))

	stops, err := c.ListStops(context.Background())
	if err != nil {
		t.Fatalf("ListStops() error = %v", err)
	}
	if len(stops) != 1 {
		t.Fatalf("ListStops() returned %d stops, expected 1", len(stops))
	}
	if stops[0].Latitude != 22.31 || stops[0].DisplayName != "站一" {
		t.Errorf("stops[0] = %+v", stops[0])
	}
}

func TestDirectionalStops(t *testing.T) {
	c := newTestClient(newTestServer(t))
	route := models.Route{Code: "1A", Operator: models.OperatorKMB, ServiceVariant: "1"}

	links, err := c.DirectionalStops(context.Background(), route, models.Outbound)
	if err != nil {
		t.Fatalf("DirectionalStops() error = %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("got %d links, expected 2", len(links))
	}
	for _, l := range links {
		if l.Direction != models.Outbound {
			t.Errorf("link %+v has direction %v", l, l.Direction)
		}
	}
	if links[0].Sequence != 2 || links[0].StopID != "B2" {
		t.Errorf("links[0] = %+v, expected wire order preserved", links[0])
	}

	inbound, err := c.DirectionalStops(context.Background(), route, models.Inbound)
	if err != nil {
		t.Fatalf("DirectionalStops(inbound) error = %v", err)
	}
	if len(inbound) != 0 {
		t.Errorf("expected empty inbound result, got %d", len(inbound))
	}
}

func TestETAs(t *testing.T) {
	c := newTestClient(newTestServer(t))
	route := models.Route{Code: "1A", Operator: models.OperatorKMB, ServiceVariant: "1"}

	entries, err := c.ETAs(context.Background(), "A1", route)
	if err != nil {
		t.Fatalf("ETAs() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ETAs() returned %d entries, expected 2 (null eta and other variant dropped)", len(entries))
	}
	if entries[0].Direction != models.Outbound || entries[1].Direction != models.Inbound {
		t.Errorf("directions = %v, %v", entries[0].Direction, entries[1].Direction)
	}
	if entries[0].Arrival.UTC().Format("15:04") != "02:05" {
		t.Errorf("arrival = %v", entries[0].Arrival)
	}
}

func TestFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).ListRoutes(context.Background())
	if !fetch.IsTransportFailure(err) {
		t.Errorf("ListRoutes() error = %v, expected transport failure", err)
	}
}
