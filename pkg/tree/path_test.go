package tree

import (
	"reflect"
	"testing"

	"github.com/jimyag/aggravator/pkg/errors"
)

func TestSplitKeyPath(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want []string
	}{
		{"slash separated", "all/vars/region", []string{"all", "vars", "region"}},
		{"dot separated", "all.vars.region", []string{"all", "vars", "region"}},
		{"leading slash", "/all/vars", []string{"all", "vars"}},
		{"single segment", "web", []string{"web"}},
		{"slash wins over dots", "conf/my.key", []string{"conf", "my.key"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SplitKeyPath(tt.key); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitKeyPath() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetPath(t *testing.T) {
	root := map[string]interface{}{
		"all": map[string]interface{}{
			"vars": map[string]interface{}{"region": "us-east-1"},
		},
	}

	got, found := GetPath(root, []string{"all", "vars", "region"})
	if !found || got != "us-east-1" {
		t.Errorf("GetPath() = %v, %v", got, found)
	}

	if _, found := GetPath(root, []string{"all", "missing"}); found {
		t.Error("GetPath() found a missing key")
	}

	// 中间节点是标量时路径不可达
	if _, found := GetPath(root, []string{"all", "vars", "region", "deeper"}); found {
		t.Error("GetPath() descended through a scalar")
	}
}

func TestSetPath(t *testing.T) {
	// 中间缺失的映射被创建
	root := map[string]interface{}{}
	if err := SetPath(root, []string{"all", "vars", "region"}, "us-east-1", "test"); err != nil {
		t.Fatal(err)
	}
	want := map[string]interface{}{
		"all": map[string]interface{}{
			"vars": map[string]interface{}{"region": "us-east-1"},
		},
	}
	if !reflect.DeepEqual(root, want) {
		t.Errorf("SetPath() result = %v, want %v", root, want)
	}

	// 已有值被替换
	if err := SetPath(root, []string{"all", "vars", "region"}, "eu-west-1", "test"); err != nil {
		t.Fatal(err)
	}
	if got, _ := GetPath(root, []string{"all", "vars", "region"}); got != "eu-west-1" {
		t.Errorf("SetPath() did not replace, got %v", got)
	}

	// 中间节点不是映射时报 TypeMismatch
	err := SetPath(root, []string{"all", "vars", "region", "deeper"}, 1, "test")
	if !errors.IsType(err, errors.ErrTypeMismatch) {
		t.Errorf("Expected TypeMismatch, got %v", err)
	}
}
