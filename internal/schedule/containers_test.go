package schedule

import (
	"reflect"
	"testing"
)

func TestAvailableContainers(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		entries []Entry
		want    []int
	}{
		{
			name:    "empty schedule frees all slots",
			entries: nil,
			want:    []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		},
		{
			name: "numeric and text containers, junk ignored",
			entries: []Entry{
				{Container: "3"},
				{Container: "4"},
				{Container: "x"},
				{Container: ""},
			},
			want: []int{1, 2, 5, 6, 7, 8, 9, 10},
		},
		{
			name: "duplicates count once",
			entries: []Entry{
				{Container: "1"},
				{Container: "1"},
				{Container: "10"},
			},
			want: []int{2, 3, 4, 5, 6, 7, 8, 9},
		},
		{
			name: "out of range values do not shrink the set",
			entries: []Entry{
				{Container: "11"},
				{Container: "0"},
				{Container: "-2"},
			},
			want: []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := AvailableContainers(tt.entries)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("AvailableContainers = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestContainerConflict(t *testing.T) {
	t.Parallel()
	entries := []Entry{
		{ID: "a", Container: "3"},
		{ID: "b", Container: "x"},
		{ID: "c", Container: ""},
	}

	if !ContainerConflict(entries, "3", "") {
		t.Fatal("expected conflict on taken slot 3")
	}
	if ContainerConflict(entries, "3", "a") {
		t.Fatal("entry must not conflict with its own slot")
	}
	if ContainerConflict(entries, "4", "") {
		t.Fatal("free slot must not conflict")
	}
	if ContainerConflict(entries, "x", "") {
		t.Fatal("non-numeric container must never conflict")
	}
	if ContainerConflict(entries, "", "") {
		t.Fatal("blank container must never conflict")
	}
}
