package storage

import (
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// VotedIndex maps poll id to the option index this client voted for.
type VotedIndex map[string]int

func (v VotedIndex) MarshalBinary() ([]byte, error) {
	return json.Marshal(v)
}

func (v *VotedIndex) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, v)
}
