package process

import (
	"errors"
	"fmt"
	"os"
	"testing"
	"time"
)

func TestStopWithUndeliverableTermEscalates(t *testing.T) {
	undeliverable := func(pid int) error {
		return &SignalError{PID: pid, Signal: "close", Err: fmt.Errorf("%w: exit status 1", ErrTermNotDelivered)}
	}
	start := time.Now()
	done, err := stopWith(os.Getpid(), time.Minute, undeliverable)
	if err != nil {
		t.Fatalf("undeliverable graceful request must not be fatal: %v", err)
	}
	if done {
		t.Fatal("live process reported stopped")
	}
	if time.Since(start) > time.Second {
		t.Fatal("nothing was delivered, so there is nothing to wait for")
	}
}

func TestStopWithSignalFailureIsReturned(t *testing.T) {
	denied := &SignalError{PID: os.Getpid(), Signal: "terminated", Err: errors.New("operation not permitted")}
	done, err := stopWith(os.Getpid(), time.Second, func(int) error { return denied })
	var se *SignalError
	if !errors.As(err, &se) || done {
		t.Fatalf("expected SignalError, got done=%v err=%v", done, err)
	}
}

func TestStopWithVanishedProcess(t *testing.T) {
	done, err := stopWith(os.Getpid(), time.Second, func(int) error { return ErrProcessGone })
	if err != nil || !done {
		t.Fatalf("vanished process: done=%v err=%v", done, err)
	}
}
