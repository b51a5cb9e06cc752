package types

import (
	"fmt"
	"strconv"
	"time"

	abci "github.com/cometbft/cometbft/abci/types"
)

const (
	EventMemberUpdatedType       = "member_updated"
	EventResolutionCreatedType   = "resolution_created"
	EventVoteCastType            = "vote_cast"
	EventResolutionClosedType    = "resolution_closed"
	EventResolutionFinalizedType = "resolution_finalized"
)

const (
	MemberReasonUpsert = "upsert"
	MemberReasonRemove = "remove"
	MemberReasonEnroll = "enroll"
)

type EventMemberUpdated struct {
	Address     string `json:"address"`
	Active      bool   `json:"active"`
	Weight      uint64 `json:"weight"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	TotalWeight uint64 `json:"totalWeight"`
	Reason      string `json:"reason"`
}

func EncodeEventMemberUpdated(event *EventMemberUpdated) abci.Event {
	return abci.Event{
		Type: EventMemberUpdatedType,
		Attributes: []abci.EventAttribute{
			{Key: "address", Value: event.Address, Index: true},
			{Key: "active", Value: fmt.Sprintf("%v", event.Active), Index: false},
			{Key: "weight", Value: fmt.Sprintf("%v", event.Weight), Index: false},
			{Key: "name", Value: event.Name, Index: false},
			{Key: "role", Value: event.Role, Index: false},
			{Key: "totalWeight", Value: fmt.Sprintf("%v", event.TotalWeight), Index: false},
			{Key: "reason", Value: event.Reason, Index: true},
		},
	}
}

func DecodeEventMemberUpdated(originEvent abci.Event) *EventMemberUpdated {
	event := &EventMemberUpdated{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "address":
			event.Address = v.Value
		case "active":
			active, err := strconv.ParseBool(v.Value)
			if err != nil {
				return nil
			}
			event.Active = active
		case "weight":
			weight, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Weight = weight
		case "name":
			event.Name = v.Value
		case "role":
			event.Role = v.Value
		case "totalWeight":
			total, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.TotalWeight = total
		case "reason":
			event.Reason = v.Value
		}
	}
	return event
}

type EventResolutionCreated struct {
	Resolution     uint64    `json:"resolution"`
	Creator        string    `json:"creator"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	StartTime      time.Time `json:"startTime"`
	EndTime        time.Time `json:"endTime"`
	RequiredQuorum uint64    `json:"requiredQuorum"`
}

func EncodeEventResolutionCreated(event *EventResolutionCreated) abci.Event {
	return abci.Event{
		Type: EventResolutionCreatedType,
		Attributes: []abci.EventAttribute{
			{Key: "resolution", Value: fmt.Sprintf("%v", event.Resolution), Index: true},
			{Key: "creator", Value: event.Creator, Index: true},
			{Key: "title", Value: event.Title, Index: false},
			{Key: "description", Value: event.Description, Index: false},
			{Key: "startTime", Value: fmt.Sprintf("%v", event.StartTime.Unix()), Index: false},
			{Key: "endTime", Value: fmt.Sprintf("%v", event.EndTime.Unix()), Index: false},
			{Key: "requiredQuorum", Value: fmt.Sprintf("%v", event.RequiredQuorum), Index: false},
		},
	}
}

func DecodeEventResolutionCreated(originEvent abci.Event) *EventResolutionCreated {
	event := &EventResolutionCreated{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "resolution":
			id, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Resolution = id
		case "creator":
			event.Creator = v.Value
		case "title":
			event.Title = v.Value
		case "description":
			event.Description = v.Value
		case "startTime":
			ts, err := parseUnix(v.Value)
			if err != nil {
				return nil
			}
			event.StartTime = ts
		case "endTime":
			ts, err := parseUnix(v.Value)
			if err != nil {
				return nil
			}
			event.EndTime = ts
		case "requiredQuorum":
			quorum, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.RequiredQuorum = quorum
		}
	}
	return event
}

// EventVoteCast never carries the choice or the weight applied.
type EventVoteCast struct {
	Resolution uint64 `json:"resolution"`
	Voter      string `json:"voter"`
}

func EncodeEventVoteCast(event *EventVoteCast) abci.Event {
	return abci.Event{
		Type: EventVoteCastType,
		Attributes: []abci.EventAttribute{
			{Key: "resolution", Value: fmt.Sprintf("%v", event.Resolution), Index: true},
			{Key: "voter", Value: event.Voter, Index: true},
		},
	}
}

func DecodeEventVoteCast(originEvent abci.Event) *EventVoteCast {
	event := &EventVoteCast{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "resolution":
			id, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Resolution = id
		case "voter":
			event.Voter = v.Value
		}
	}
	return event
}

type EventResolutionClosed struct {
	Resolution uint64           `json:"resolution"`
	Closer     string           `json:"closer"`
	Status     ResolutionStatus `json:"status"`
	RequestId  string           `json:"requestId"`
	Deadline   time.Time        `json:"deadline"`
}

func EncodeEventResolutionClosed(event *EventResolutionClosed) abci.Event {
	return abci.Event{
		Type: EventResolutionClosedType,
		Attributes: []abci.EventAttribute{
			{Key: "resolution", Value: fmt.Sprintf("%v", event.Resolution), Index: true},
			{Key: "closer", Value: event.Closer, Index: false},
			{Key: "status", Value: fmt.Sprintf("%v", uint64(event.Status)), Index: false},
			{Key: "requestId", Value: event.RequestId, Index: true},
			{Key: "deadline", Value: fmt.Sprintf("%v", event.Deadline.Unix()), Index: false},
		},
	}
}

func DecodeEventResolutionClosed(originEvent abci.Event) *EventResolutionClosed {
	event := &EventResolutionClosed{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "resolution":
			id, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Resolution = id
		case "closer":
			event.Closer = v.Value
		case "status":
			status, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Status = ResolutionStatus(status)
		case "requestId":
			event.RequestId = v.Value
		case "deadline":
			ts, err := parseUnix(v.Value)
			if err != nil {
				return nil
			}
			event.Deadline = ts
		}
	}
	return event
}

type EventResolutionFinalized struct {
	Resolution uint64 `json:"resolution"`
	Passed     bool   `json:"passed"`
	YesVotes   uint64 `json:"yesVotes"`
	NoVotes    uint64 `json:"noVotes"`
}

func EncodeEventResolutionFinalized(event *EventResolutionFinalized) abci.Event {
	return abci.Event{
		Type: EventResolutionFinalizedType,
		Attributes: []abci.EventAttribute{
			{Key: "resolution", Value: fmt.Sprintf("%v", event.Resolution), Index: true},
			{Key: "passed", Value: fmt.Sprintf("%v", event.Passed), Index: true},
			{Key: "yes", Value: fmt.Sprintf("%v", event.YesVotes), Index: false},
			{Key: "no", Value: fmt.Sprintf("%v", event.NoVotes), Index: false},
		},
	}
}

func DecodeEventResolutionFinalized(originEvent abci.Event) *EventResolutionFinalized {
	event := &EventResolutionFinalized{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "resolution":
			id, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Resolution = id
		case "passed":
			passed, err := strconv.ParseBool(v.Value)
			if err != nil {
				return nil
			}
			event.Passed = passed
		case "yes":
			yes, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.YesVotes = yes
		case "no":
			no, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.NoVotes = no
		}
	}
	return event
}

func parseUnix(s string) (time.Time, error) {
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(sec, 0).UTC(), nil
}
