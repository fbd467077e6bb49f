package attendance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
)

func TestService(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo(
		Record{ID: 1, StudentID: 1, ClassID: 4, Date: day, IsAbsent: true},
		Record{ID: 2, StudentID: 2, ClassID: 4, Date: day},
		Record{ID: 3, StudentID: 1, ClassID: 4, Date: day.AddDays(1)},
	)
	svc := NewService(repo, nil)

	_, err := svc.Create(ctx, Input{ClassID: 4, Date: day})
	assert.Error(t, err, "a record must reference a student")
	creates, _ := repo.writes()
	assert.Zero(t, creates)

	rec, err := svc.Create(ctx, Input{StudentID: 3, ClassID: 4})
	require.NoError(t, err)
	assert.Equal(t, core.Today(), rec.Date)

	mine, err := svc.ListByStudent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	absent, err := svc.List(ctx, Filter{ClassID: 4, AbsentOnly: true})
	require.NoError(t, err)
	assert.Equal(t, []Record{{ID: 1, StudentID: 1, ClassID: 4, Date: day, IsAbsent: true}}, absent)

	_, err = svc.ListByClassDate(ctx, 9, day)
	assert.Equal(t, core.ErrNotFound, err)
	assert.Empty(t, svc.Records().Error(), "a 404 is not recorded as a failure")

	upd, err := svc.Update(ctx, 2, Input{StudentID: 2, ClassID: 4, Date: day, IsAbsent: true})
	require.NoError(t, err)
	assert.True(t, upd.IsAbsent)

	require.NoError(t, svc.Delete(ctx, 2))
	_, err = svc.Get(ctx, 2)
	assert.Equal(t, core.ErrNotFound, err)
}
