package eta

import (
	"fmt"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"

	"github.com/pannnnl/hkbus-eta/internal/models"
)

// Feed exports the upcoming arrivals of every expanded stop as a
// GTFS-Realtime TripUpdates feed. Each arrival becomes its own entity,
// since arrivals at one stop belong to different trips.
func (b *Board) Feed() *gtfs.FeedMessage {
	views := b.Views()
	now := b.currentNow()

	msg := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: ptr("2.0"),
			Incrementality:      ptr(gtfs.FeedHeader_FULL_DATASET),
			Timestamp:           ptr(uint64(now.Unix())),
		},
	}

	for _, v := range views {
		for _, a := range v.Arrivals {
			msg.Entity = append(msg.Entity, arrivalEntity(v, a))
		}
	}
	return msg
}

func arrivalEntity(v View, a Arrival) *gtfs.FeedEntity {
	stu := &gtfs.TripUpdate_StopTimeUpdate{
		StopId:  ptr(v.Key.StopID),
		Arrival: &gtfs.TripUpdate_StopTimeEvent{Time: ptr(a.Arrival.Unix())},
	}

	tu := &gtfs.TripUpdate{
		Trip: &gtfs.TripDescriptor{
			RouteId:     ptr(fmt.Sprintf("%s-%s-%s", v.Key.Operator, v.Key.RouteCode, v.Key.ServiceVariant)),
			DirectionId: ptr(directionID(v.Key.Direction)),
		},
		StopTimeUpdate: []*gtfs.TripUpdate_StopTimeUpdate{stu},
	}
	if !v.UpdatedAt.IsZero() {
		tu.Timestamp = ptr(uint64(v.UpdatedAt.Unix()))
	}

	return &gtfs.FeedEntity{
		Id:         ptr(fmt.Sprintf("%s#%d", v.Key, a.Sequence)),
		TripUpdate: tu,
	}
}

func directionID(d models.Direction) uint32 {
	if d == models.Inbound {
		return 1
	}
	return 0
}

// MarshalFeed encodes msg as protobuf, or as human-readable text when readable is set
func MarshalFeed(msg *gtfs.FeedMessage, readable bool) ([]byte, error) {
	if readable {
		return prototext.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(msg)
	}
	return proto.Marshal(msg)
}

func ptr[T any](v T) *T {
	return &v
}
