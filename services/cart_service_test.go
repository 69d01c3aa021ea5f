package services

import (
	"context"
	"testing"

	"github.com/kodexa-lms/commerce-api/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartAddMintsGuestToken(t *testing.T) {
	db := newTestDB(t)
	svc := NewCartService(db)
	instructor := seedInstructor(t, db, "inst@test.dev", 0)
	course := seedCourse(t, db, "Go Basics", 49.99, instructor.ID)

	result, err := svc.Add(context.Background(), CartActor{}, course.ID, course.Price, instructor.ID)
	require.NoError(t, err)
	require.NotEmpty(t, result.GuestToken, "anonymous add must mint a guest token")
	assert.Equal(t, result.GuestToken, result.Item.GuestToken)
	assert.Nil(t, result.Item.UserID)

	// Second add with the minted token reuses it, no new token.
	course2 := seedCourse(t, db, "Go Advanced", 79.99, instructor.ID)
	result2, err := svc.Add(context.Background(), CartActor{GuestToken: result.GuestToken}, course2.ID, course2.Price, instructor.ID)
	require.NoError(t, err)
	assert.Empty(t, result2.GuestToken)

	items, err := svc.List(context.Background(), CartActor{GuestToken: result.GuestToken})
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestCartDuplicateAddRejected(t *testing.T) {
	db := newTestDB(t)
	svc := NewCartService(db)
	instructor := seedInstructor(t, db, "inst@test.dev", 0)
	course := seedCourse(t, db, "Go Basics", 49.99, instructor.ID)
	user := seedUser(t, db, "buyer@test.dev", model.RoleStudent)

	actor := CartActor{UserID: &user.ID}
	_, err := svc.Add(context.Background(), actor, course.ID, course.Price, instructor.ID)
	require.NoError(t, err)

	_, err = svc.Add(context.Background(), actor, course.ID, course.Price, instructor.ID)
	assert.ErrorIs(t, err, ErrAlreadyInCart)

	// Same rejection for guests.
	guest := CartActor{GuestToken: "11111111-1111-1111-1111-111111111111"}
	_, err = svc.Add(context.Background(), guest, course.ID, course.Price, instructor.ID)
	require.NoError(t, err)
	_, err = svc.Add(context.Background(), guest, course.ID, course.Price, instructor.ID)
	assert.ErrorIs(t, err, ErrAlreadyInCart)
}

func TestCartSnapshotsPrice(t *testing.T) {
	db := newTestDB(t)
	svc := NewCartService(db)
	instructor := seedInstructor(t, db, "inst@test.dev", 0)
	course := seedCourse(t, db, "Go Basics", 49.99, instructor.ID)
	user := seedUser(t, db, "buyer@test.dev", model.RoleStudent)

	result, err := svc.Add(context.Background(), CartActor{UserID: &user.ID}, course.ID, 49.99, instructor.ID)
	require.NoError(t, err)
	assert.Equal(t, 49.99, result.Item.Price)

	// The catalog price changes; the cart keeps the snapshot.
	require.NoError(t, db.Model(course).UpdateColumn("price", 99.99).Error)
	items, err := svc.List(context.Background(), CartActor{UserID: &user.ID})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 49.99, items[0].Price)
}

func TestCartListInsertionOrder(t *testing.T) {
	db := newTestDB(t)
	svc := NewCartService(db)
	instructor := seedInstructor(t, db, "inst@test.dev", 0)
	user := seedUser(t, db, "buyer@test.dev", model.RoleStudent)
	actor := CartActor{UserID: &user.ID}

	titles := []string{"First", "Second", "Third"}
	for _, title := range titles {
		course := seedCourse(t, db, title, 10, instructor.ID)
		_, err := svc.Add(context.Background(), actor, course.ID, 10, instructor.ID)
		require.NoError(t, err)
	}

	items, err := svc.List(context.Background(), actor)
	require.NoError(t, err)
	require.Len(t, items, 3)
	for i := 1; i < len(items); i++ {
		assert.Greater(t, items[i].ID, items[i-1].ID)
	}
}

func TestCartRemoveIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := NewCartService(db)
	instructor := seedInstructor(t, db, "inst@test.dev", 0)
	course := seedCourse(t, db, "Go Basics", 49.99, instructor.ID)
	user := seedUser(t, db, "buyer@test.dev", model.RoleStudent)

	result, err := svc.Add(context.Background(), CartActor{UserID: &user.ID}, course.ID, course.Price, instructor.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Remove(context.Background(), result.Item.ID))
	require.NoError(t, svc.Remove(context.Background(), result.Item.ID), "second remove is a no-op")
	require.NoError(t, svc.Remove(context.Background(), 99999))
}

func TestCartMerge(t *testing.T) {
	db := newTestDB(t)
	svc := NewCartService(db)
	instructor := seedInstructor(t, db, "inst@test.dev", 0)
	user := seedUser(t, db, "buyer@test.dev", model.RoleStudent)
	shared := seedCourse(t, db, "Shared", 10, instructor.ID)
	guestOnly := seedCourse(t, db, "Guest Only", 20, instructor.ID)

	const token = "22222222-2222-2222-2222-222222222222"
	guest := CartActor{GuestToken: token}
	owner := CartActor{UserID: &user.ID}

	// User already holds the shared course; the guest cart holds both.
	_, err := svc.Add(context.Background(), owner, shared.ID, 10, instructor.ID)
	require.NoError(t, err)
	_, err = svc.Add(context.Background(), guest, shared.ID, 10, instructor.ID)
	require.NoError(t, err)
	_, err = svc.Add(context.Background(), guest, guestOnly.ID, 20, instructor.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Merge(context.Background(), token, user.ID))

	items, err := svc.List(context.Background(), owner)
	require.NoError(t, err)
	assert.Len(t, items, 2, "duplicate guest item dropped, unique one carried over")

	guestItems, err := svc.List(context.Background(), guest)
	require.NoError(t, err)
	assert.Empty(t, guestItems)

	// Replaying the merge changes nothing.
	require.NoError(t, svc.Merge(context.Background(), token, user.ID))
	items, err = svc.List(context.Background(), owner)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	// Empty token is a no-op.
	require.NoError(t, svc.Merge(context.Background(), "", user.ID))
}

func TestCartClear(t *testing.T) {
	db := newTestDB(t)
	svc := NewCartService(db)
	instructor := seedInstructor(t, db, "inst@test.dev", 0)
	user := seedUser(t, db, "buyer@test.dev", model.RoleStudent)
	actor := CartActor{UserID: &user.ID}

	for _, title := range []string{"A", "B"} {
		course := seedCourse(t, db, title, 10, instructor.ID)
		_, err := svc.Add(context.Background(), actor, course.ID, 10, instructor.ID)
		require.NoError(t, err)
	}

	require.NoError(t, svc.Clear(context.Background(), actor))
	items, err := svc.List(context.Background(), actor)
	require.NoError(t, err)
	assert.Empty(t, items)
}
