package lock

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

const refreshKey = "notifications:credential:refresh"

func TestMySQLLockerAcquireRelease(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	locker := NewMySQLLocker(db)
	mock.ExpectQuery("SELECT GET_LOCK").
		WithArgs(refreshKey, 30).
		WillReturnRows(sqlmock.NewRows([]string{"acquired"}).AddRow(1))

	if err := locker.Acquire(context.Background(), refreshKey, 30*time.Second); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := locker.Acquire(context.Background(), refreshKey, 30*time.Second); err != ErrAlreadyHeld {
		t.Fatalf("expected ErrAlreadyHeld, got %v", err)
	}

	mock.ExpectExec("SELECT RELEASE_LOCK").
		WithArgs(refreshKey).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := locker.Release(context.Background(), refreshKey); err != nil {
		t.Fatalf("Release: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMySQLLockerNotAcquired(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	locker := NewMySQLLocker(db)
	mock.ExpectQuery("SELECT GET_LOCK").
		WithArgs(refreshKey, 1).
		WillReturnRows(sqlmock.NewRows([]string{"acquired"}).AddRow(0))

	if err := locker.Acquire(context.Background(), refreshKey, 100*time.Millisecond); err != ErrNotAcquired {
		t.Fatalf("expected ErrNotAcquired, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMySQLLockerReleaseUnheldIsNoop(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	if err := NewMySQLLocker(db).Release(context.Background(), refreshKey); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMySQLLockerReservesKeyWhileAcquiring(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	locker := NewMySQLLocker(db)
	mock.ExpectQuery("SELECT GET_LOCK").
		WithArgs(refreshKey, 30).
		WillDelayFor(200 * time.Millisecond).
		WillReturnRows(sqlmock.NewRows([]string{"acquired"}).AddRow(1))

	first := make(chan error, 1)
	go func() {
		first <- locker.Acquire(context.Background(), refreshKey, 30*time.Second)
	}()

	deadline := time.Now().Add(time.Second)
	for {
		locker.mu.Lock()
		_, reserved := locker.conns[refreshKey]
		locker.mu.Unlock()
		if reserved {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("first Acquire never reserved the key")
		}
		time.Sleep(time.Millisecond)
	}

	// A second caller must not reach the database while the first is waiting.
	if err := locker.Acquire(context.Background(), refreshKey, 30*time.Second); err != ErrAlreadyHeld {
		t.Fatalf("expected ErrAlreadyHeld while acquiring, got %v", err)
	}
	if err := locker.Release(context.Background(), refreshKey); err != nil {
		t.Fatalf("Release of pending key: %v", err)
	}

	if err := <-first; err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMySQLLockerFailedAcquireClearsReservation(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	locker := NewMySQLLocker(db)
	mock.ExpectQuery("SELECT GET_LOCK").
		WithArgs(refreshKey, 1).
		WillReturnRows(sqlmock.NewRows([]string{"acquired"}).AddRow(0))
	mock.ExpectQuery("SELECT GET_LOCK").
		WithArgs(refreshKey, 1).
		WillReturnRows(sqlmock.NewRows([]string{"acquired"}).AddRow(1))

	if err := locker.Acquire(context.Background(), refreshKey, time.Second); err != ErrNotAcquired {
		t.Fatalf("expected ErrNotAcquired, got %v", err)
	}
	if err := locker.Acquire(context.Background(), refreshKey, time.Second); err != nil {
		t.Fatalf("retry Acquire: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
