package transport

import (
	"errors"
	"testing"
	"time"

	"github.com/roadside-lab/rsu/internal/domain"
)

func TestListenAndSend(t *testing.T) {
	conn, err := ListenUDP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	defer conn.Close()

	s, err := Dial(conn.LocalAddr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer s.Close()

	if err := s.Send([]byte("ping")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, DefaultBufferSize)
	n, from, err := conn.ReadFrom(buf)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if string(buf[:n]) != "ping" {
		t.Errorf("payload = %q, want ping", buf[:n])
	}
	if from.String() != s.LocalAddr().String() {
		t.Errorf("sender = %s, want %s", from, s.LocalAddr())
	}
}

func TestListenUDP_BindConflict(t *testing.T) {
	first, err := ListenUDP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	defer first.Close()

	_, err = ListenUDP(first.LocalAddr().String())
	if !errors.Is(err, domain.ErrBindFailed) {
		t.Errorf("second bind error = %v, want ErrBindFailed", err)
	}
}

func TestIsClosed(t *testing.T) {
	conn, err := ListenUDP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	conn.Close()

	_, _, err = conn.ReadFrom(make([]byte, 8))
	if !IsClosed(err) {
		t.Errorf("IsClosed(%v) = false, want true", err)
	}
	if IsClosed(errors.New("boom")) {
		t.Error("IsClosed(boom) = true")
	}
}

func TestAddr(t *testing.T) {
	if got := Addr("0.0.0.0", 5000); got != "0.0.0.0:5000" {
		t.Errorf("Addr = %q", got)
	}
	if got := Addr("::1", 5000); got != "[::1]:5000" {
		t.Errorf("Addr = %q", got)
	}
}
