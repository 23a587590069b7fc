package inventory

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInstances_SingleInstance(t *testing.T) {
	data := []byte(`{"Reservations":[{"Instances":[{"InstanceId":"i-1","InstanceType":"t2.micro","PrivateIpAddress":"10.0.0.5","State":{"Name":"running"},"Tags":[{"Key":"Name","Value":"web1"}]}]}]}`)

	instances, err := ParseInstances(data)
	require.NoError(t, err)
	require.Len(t, instances, 1)

	inst := instances[0]
	assert.Equal(t, "i-1", inst.InstanceID)
	assert.Equal(t, "t2.micro", inst.InstanceType)
	assert.Equal(t, "running", inst.State)
	assert.Equal(t, "10.0.0.5", inst.PrivateIP)
	assert.Equal(t, "web1", inst.Name())
}

func TestParseInstances_FlattensReservationsInOrder(t *testing.T) {
	// Three reservations of sizes 2, 0 and 3. The flat sequence must
	// walk reservations in response order and keep instance order
	// inside each one.
	data := []byte(`{"Reservations":[
		{"Instances":[
			{"InstanceId":"i-a1","State":{"Name":"running"}},
			{"InstanceId":"i-a2","State":{"Name":"stopped"}}]},
		{"Instances":[]},
		{"Instances":[
			{"InstanceId":"i-b1","State":{"Name":"running"}},
			{"InstanceId":"i-b2","State":{"Name":"pending"}},
			{"InstanceId":"i-b3","State":{"Name":"running"}}]}
	]}`)

	instances, err := ParseInstances(data)
	require.NoError(t, err)
	require.Len(t, instances, 5)

	var ids []string
	for _, inst := range instances {
		ids = append(ids, inst.InstanceID)
	}
	assert.Equal(t, []string{"i-a1", "i-a2", "i-b1", "i-b2", "i-b3"}, ids)
}

func TestParseInstances_ManyReservations(t *testing.T) {
	// Total record count must equal the sum of instances across all
	// reservations, whatever the split.
	var sb strings.Builder
	sb.WriteString(`{"Reservations":[`)
	want := 0
	for r := 0; r < 7; r++ {
		if r > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(`{"Instances":[`)
		for i := 0; i < r; i++ {
			if i > 0 {
				sb.WriteString(",")
			}
			fmt.Fprintf(&sb, `{"InstanceId":"i-%d-%d","State":{"Name":"running"}}`, r, i)
			want++
		}
		sb.WriteString(`]}`)
	}
	sb.WriteString(`]}`)

	instances, err := ParseInstances([]byte(sb.String()))
	require.NoError(t, err)
	assert.Len(t, instances, want)
}

func TestParseInstances_NormalizesTags(t *testing.T) {
	data := []byte(`{"Reservations":[{"Instances":[{
		"InstanceId":"i-1","State":{"Name":"running"},
		"Tags":[
			{"Key":"Name","Value":"api"},
			{"Key":"Environment","Value":"production"},
			{"Key":"Team","Value":""}
		]}]}]}`)

	instances, err := ParseInstances(data)
	require.NoError(t, err)
	require.Len(t, instances, 1)

	tags := instances[0].Tags
	assert.Equal(t, map[string]string{
		"Name":        "api",
		"Environment": "production",
		"Team":        "",
	}, tags)
}

func TestParseInstances_DuplicateTagKeyLastWins(t *testing.T) {
	data := []byte(`{"Reservations":[{"Instances":[{
		"InstanceId":"i-1","State":{"Name":"running"},
		"Tags":[{"Key":"Name","Value":"old"},{"Key":"Name","Value":"new"}]}]}]}`)

	instances, err := ParseInstances(data)
	require.NoError(t, err)
	assert.Equal(t, "new", instances[0].Name())
}

func TestParseInstances_NoTagsField(t *testing.T) {
	data := []byte(`{"Reservations":[{"Instances":[{"InstanceId":"i-1","State":{"Name":"stopped"}}]}]}`)

	instances, err := ParseInstances(data)
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, "", instances[0].Name())
	assert.NotNil(t, instances[0].Tags)
}

func TestParseInstances_EmptyReservations(t *testing.T) {
	instances, err := ParseInstances([]byte(`{"Reservations":[]}`))
	require.NoError(t, err)
	assert.Empty(t, instances)
}

func TestParseInstances_OptionalFields(t *testing.T) {
	data := []byte(`{"Reservations":[{"Instances":[{
		"InstanceId":"i-1","InstanceType":"m5.large","State":{"Name":"running"},
		"PublicIpAddress":"54.1.2.3","ImageId":"ami-0abc",
		"Placement":{"AvailabilityZone":"eu-north-1a"},
		"LaunchTime":"2026-03-01T10:00:00+00:00"}]}]}`)

	instances, err := ParseInstances(data)
	require.NoError(t, err)
	require.Len(t, instances, 1)

	inst := instances[0]
	assert.Equal(t, "eu-north-1a", inst.AZ)
	assert.Equal(t, "54.1.2.3", inst.PublicIP)
	assert.Equal(t, "ami-0abc", inst.ImageID)
	assert.Equal(t, "", inst.PrivateIP)
	assert.False(t, inst.LaunchTime.IsZero())
}

func TestParseInstances_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `describe-instances: command not found`},
		{"missing reservations", `{"Things":[]}`},
		{"reservations not array", `{"Reservations":{"Instances":[]}}`},
		{"instances not array", `{"Reservations":[{"Instances":{"InstanceId":"i-1"}}]}`},
		{"instance without id", `{"Reservations":[{"Instances":[{"State":{"Name":"running"}}]}]}`},
		{"instance without state", `{"Reservations":[{"Instances":[{"InstanceId":"i-1"}]}]}`},
		{"state without name", `{"Reservations":[{"Instances":[{"InstanceId":"i-1","State":{}}]}]}`},
		{"tag without value", `{"Reservations":[{"Instances":[{"InstanceId":"i-1","State":{"Name":"running"},"Tags":[{"Key":"Name"}]}]}]}`},
		{"tag without key", `{"Reservations":[{"Instances":[{"InstanceId":"i-1","State":{"Name":"running"},"Tags":[{"Value":"x"}]}]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseInstances([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed), "want ErrMalformed, got %v", err)
		})
	}
}
