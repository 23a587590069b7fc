// Package inventory turns raw AWS CLI output into typed instance
// records and drives the describe/start/stop/terminate calls that
// produce it.
package inventory

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/yairfalse/karja/types"
)

// ErrMalformed reports tool output whose shape does not match the EC2
// API contract. The wrapped message says which part was wrong.
var ErrMalformed = errors.New("malformed inventory")

// Wire shapes for describe-instances. Pointer fields mark the places
// where a missing value must be detected instead of zero-valued.
type describeResponse struct {
	Reservations *[]reservation `json:"Reservations"`
}

type reservation struct {
	ReservationID string        `json:"ReservationId"`
	Instances     []rawInstance `json:"Instances"`
}

type rawInstance struct {
	InstanceID       *string    `json:"InstanceId"`
	InstanceType     string     `json:"InstanceType"`
	PrivateIPAddress string     `json:"PrivateIpAddress"`
	PublicIPAddress  string     `json:"PublicIpAddress"`
	ImageID          string     `json:"ImageId"`
	LaunchTime       time.Time  `json:"LaunchTime"`
	Placement        *placement `json:"Placement"`
	State            *state     `json:"State"`
	Tags             []tagPair  `json:"Tags"`
}

type placement struct {
	AvailabilityZone string `json:"AvailabilityZone"`
}

type state struct {
	Name *string `json:"Name"`
}

type tagPair struct {
	Key   *string `json:"Key"`
	Value *string `json:"Value"`
}

// ParseInstances decodes describe-instances output into a flat instance
// list. Reservations are walked in response order and instances keep
// their order within each reservation, so the result is stable for a
// given response. An empty Reservations array is a valid empty fleet;
// a missing one is not.
func ParseInstances(data []byte) ([]types.Instance, error) {
	var resp describeResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode describe-instances output: %v", ErrMalformed, err)
	}
	if resp.Reservations == nil {
		return nil, fmt.Errorf("%w: response has no Reservations field", ErrMalformed)
	}

	instances := make([]types.Instance, 0)
	for ri, res := range *resp.Reservations {
		for ii, raw := range res.Instances {
			inst, err := normalize(raw)
			if err != nil {
				return nil, fmt.Errorf("reservation %d instance %d: %w", ri, ii, err)
			}
			instances = append(instances, inst)
		}
	}
	return instances, nil
}

// normalize converts one wire instance into the domain type, collapsing
// Tags from the array-of-pairs form into a map. Nothing past this
// function ever sees the array form.
func normalize(raw rawInstance) (types.Instance, error) {
	if raw.InstanceID == nil || *raw.InstanceID == "" {
		return types.Instance{}, fmt.Errorf("%w: instance has no InstanceId", ErrMalformed)
	}
	if raw.State == nil || raw.State.Name == nil {
		return types.Instance{}, fmt.Errorf("%w: instance %s has no State.Name", ErrMalformed, *raw.InstanceID)
	}

	tags, err := normalizeTags(raw.Tags)
	if err != nil {
		return types.Instance{}, fmt.Errorf("instance %s: %w", *raw.InstanceID, err)
	}

	inst := types.Instance{
		InstanceID:   *raw.InstanceID,
		InstanceType: raw.InstanceType,
		State:        *raw.State.Name,
		PrivateIP:    raw.PrivateIPAddress,
		PublicIP:     raw.PublicIPAddress,
		ImageID:      raw.ImageID,
		LaunchTime:   raw.LaunchTime,
		Tags:         tags,
	}
	if raw.Placement != nil {
		inst.AZ = raw.Placement.AvailabilityZone
	}
	return inst, nil
}

// normalizeTags builds the key to value map. Duplicate keys keep the
// last value seen. A pair without Key or Value is a shape violation.
func normalizeTags(pairs []tagPair) (map[string]string, error) {
	tags := make(map[string]string, len(pairs))
	for _, p := range pairs {
		if p.Key == nil || p.Value == nil {
			return nil, fmt.Errorf("%w: tag entry missing Key or Value", ErrMalformed)
		}
		tags[*p.Key] = *p.Value
	}
	return tags, nil
}
