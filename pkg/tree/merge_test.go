package tree

import (
	"reflect"
	"testing"

	"github.com/jimyag/aggravator/pkg/errors"
)

func TestMerge(t *testing.T) {
	tests := []struct {
		name     string
		base     interface{}
		incoming interface{}
		want     interface{}
		wantErr  bool
	}{
		{
			name:     "absent key taken verbatim",
			base:     map[string]interface{}{"a": "x"},
			incoming: map[string]interface{}{"b": "y"},
			want:     map[string]interface{}{"a": "x", "b": "y"},
		},
		{
			name:     "sequences union without duplicates",
			base:     map[string]interface{}{"hosts": []interface{}{"h1", "h2"}},
			incoming: map[string]interface{}{"hosts": []interface{}{"h2", "h3"}},
			want:     map[string]interface{}{"hosts": []interface{}{"h1", "h2", "h3"}},
		},
		{
			name: "mappings merge recursively",
			base: map[string]interface{}{
				"web": map[string]interface{}{"hosts": []interface{}{"h1"}},
			},
			incoming: map[string]interface{}{
				"web": map[string]interface{}{"vars": map[string]interface{}{"port": 80}},
			},
			want: map[string]interface{}{
				"web": map[string]interface{}{
					"hosts": []interface{}{"h1"},
					"vars":  map[string]interface{}{"port": 80},
				},
			},
		},
		{
			name:     "equal scalars pass through",
			base:     map[string]interface{}{"role": "frontend"},
			incoming: map[string]interface{}{"role": "frontend"},
			want:     map[string]interface{}{"role": "frontend"},
		},
		{
			name:     "conflicting scalars fail",
			base:     map[string]interface{}{"role": "frontend"},
			incoming: map[string]interface{}{"role": "backend"},
			wantErr:  true,
		},
		{
			name:     "scalar vs sequence fails",
			base:     map[string]interface{}{"x": "scalar"},
			incoming: map[string]interface{}{"x": []interface{}{"a"}},
			wantErr:  true,
		},
		{
			name:     "mapping vs sequence fails",
			base:     map[string]interface{}{"x": map[string]interface{}{}},
			incoming: map[string]interface{}{"x": []interface{}{"a"}},
			wantErr:  true,
		},
		{
			name:     "nil base takes incoming",
			base:     nil,
			incoming: map[string]interface{}{"a": 1},
			want:     map[string]interface{}{"a": 1},
		},
		{
			name:     "duplicate mapping elements deduplicated in union",
			base:     []interface{}{map[string]interface{}{"name": "h1"}},
			incoming: []interface{}{map[string]interface{}{"name": "h1"}, "h2"},
			want:     []interface{}{map[string]interface{}{"name": "h1"}, "h2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Merge(tt.base, tt.incoming, "test")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Merge() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.IsType(err, errors.ErrTypeMismatch) {
					t.Errorf("Expected TypeMismatch, got %v", errors.TypeOf(err))
				}
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Merge() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	base := map[string]interface{}{
		"web": map[string]interface{}{"hosts": []interface{}{"h1"}},
	}
	incoming := map[string]interface{}{
		"web": map[string]interface{}{"hosts": []interface{}{"h2"}},
	}

	merged, err := Merge(base, incoming, "test")
	if err != nil {
		t.Fatal(err)
	}

	// 修改合并结果不能影响输入
	mergedWeb := merged.(map[string]interface{})["web"].(map[string]interface{})
	mergedWeb["hosts"] = append(mergedWeb["hosts"].([]interface{}), "h3")

	baseHosts := base["web"].(map[string]interface{})["hosts"].([]interface{})
	incHosts := incoming["web"].(map[string]interface{})["hosts"].([]interface{})
	if len(baseHosts) != 1 || baseHosts[0] != "h1" {
		t.Errorf("base was mutated: %v", baseHosts)
	}
	if len(incHosts) != 1 || incHosts[0] != "h2" {
		t.Errorf("incoming was mutated: %v", incHosts)
	}
}

func TestMergeIsDeterministic(t *testing.T) {
	base := map[string]interface{}{"hosts": []interface{}{"b", "a"}}
	incoming := map[string]interface{}{"hosts": []interface{}{"c", "a", "d"}}

	first, err := Merge(base, incoming, "test")
	if err != nil {
		t.Fatal(err)
	}

	// 同样的输入必须产出同样的顺序
	for i := 0; i < 10; i++ {
		again, err := Merge(base, incoming, "test")
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("union order is not stable: %v vs %v", first, again)
		}
	}
}

func TestOverlay(t *testing.T) {
	tests := []struct {
		name     string
		base     map[string]interface{}
		incoming map[string]interface{}
		want     map[string]interface{}
	}{
		{
			name:     "last writer wins for scalars",
			base:     map[string]interface{}{"env": "dev", "port": 80},
			incoming: map[string]interface{}{"env": "prod"},
			want:     map[string]interface{}{"env": "prod", "port": 80},
		},
		{
			name: "nested mappings update recursively",
			base: map[string]interface{}{
				"db": map[string]interface{}{"host": "old", "port": 5432},
			},
			incoming: map[string]interface{}{
				"db": map[string]interface{}{"host": "new"},
			},
			want: map[string]interface{}{
				"db": map[string]interface{}{"host": "new", "port": 5432},
			},
		},
		{
			name:     "sequences replaced not merged",
			base:     map[string]interface{}{"list": []interface{}{"a", "b"}},
			incoming: map[string]interface{}{"list": []interface{}{"c"}},
			want:     map[string]interface{}{"list": []interface{}{"c"}},
		},
		{
			name:     "nil base",
			base:     nil,
			incoming: map[string]interface{}{"a": 1},
			want:     map[string]interface{}{"a": 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Overlay(tt.base, tt.incoming)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Overlay() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOverlayDoesNotMutateInputs(t *testing.T) {
	base := map[string]interface{}{
		"vars": map[string]interface{}{"a": 1},
	}
	incoming := map[string]interface{}{
		"vars": map[string]interface{}{"b": 2},
	}

	merged, err := Overlay(base, incoming)
	if err != nil {
		t.Fatal(err)
	}
	merged["vars"].(map[string]interface{})["c"] = 3

	if _, exists := base["vars"].(map[string]interface{})["c"]; exists {
		t.Error("base was mutated")
	}
	if _, exists := incoming["vars"].(map[string]interface{})["c"]; exists {
		t.Error("incoming was mutated")
	}
}
