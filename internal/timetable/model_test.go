package timetable

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeacherListDecoding(t *testing.T) {
	cases := map[string]struct {
		raw  string
		want TeacherList
	}{
		"single":      {raw: `{"subject":"MATH","periods":2,"teacher":"Mrs.Roy"}`, want: TeacherList{"Mrs.Roy"}},
		"list":        {raw: `{"subject":"MATH","periods":2,"teacher":["A"," B ",""]}`, want: TeacherList{"A", "B"}},
		"null":        {raw: `{"subject":"MATH","periods":2,"teacher":null}`, want: nil},
		"blank":       {raw: `{"subject":"MATH","periods":2,"teacher":"  "}`, want: nil},
		"absent":      {raw: `{"subject":"MATH","periods":2}`, want: nil},
		"empty array": {raw: `{"subject":"MATH","periods":2,"teacher":[]}`, want: nil},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var assignment SubjectAssignment
			require.NoError(t, json.Unmarshal([]byte(tc.raw), &assignment))
			assert.Equal(t, tc.want, assignment.Teachers)
		})
	}
}

func TestTeacherListRejectsNumbers(t *testing.T) {
	var assignment SubjectAssignment
	assert.Error(t, json.Unmarshal([]byte(`{"teacher":42}`), &assignment))
}

func TestSlotEncodesNulls(t *testing.T) {
	raw, err := json.Marshal(Slot{Period: 3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"period":3,"subject":null,"teacher":null,"room":null,"isLab":false}`, string(raw))
}
