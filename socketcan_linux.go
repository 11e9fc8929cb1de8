//go:build linux

package canroute

import (
	"errors"
	"net"
	"os"
	"sync"
	"syscall"
	"unsafe"
)

// socketCAN implements Bus over Linux SocketCAN using raw syscalls only.
//
// A background reader decodes each arriving can_frame and invokes the
// registered receive callback, mirroring how a CAN peripheral raises one
// receive interrupt per frame. Frames arriving while no callback is set are
// dropped.
type socketCAN struct {
	fd     int
	file   *os.File
	closed chan struct{}

	mu   sync.Mutex
	recv Handler
}

// DialSocketCAN opens a raw CAN socket bound to the given interface name
// (e.g., "can0") and starts its delivery loop.
func DialSocketCAN(iface string) (Bus, error) {
	// Create socket: AF_CAN, SOCK_RAW, CAN_RAW (protocol 1)
	const AF_CAN = 29
	const CAN_RAW = 1
	fd, err := syscall.Socket(AF_CAN, syscall.SOCK_RAW, CAN_RAW)
	if err != nil {
		return nil, err
	}

	netIf, err := net.InterfaceByName(iface)
	if err != nil {
		syscall.Close(fd)
		return nil, err
	}

	// Bind to interface.
	// struct sockaddr_can { sa_family_t can_family; int can_ifindex; union { ... } addr; };
	// We provide a compatible memory layout via unsafe and call bind(2) directly.
	type sockaddrCAN struct {
		Family  uint16
		_pad    uint16
		Ifindex int32
		Addr    [8]byte
	}
	sa := sockaddrCAN{Family: AF_CAN, Ifindex: int32(netIf.Index)}
	_, _, e := syscall.Syscall(syscall.SYS_BIND, uintptr(fd), uintptr(unsafe.Pointer(&sa)), unsafe.Sizeof(sa))
	if e != 0 {
		syscall.Close(fd)
		return nil, e
	}

	// Non-blocking so the reader can notice Close.
	if err := syscall.SetNonblock(fd, true); err != nil {
		syscall.Close(fd)
		return nil, err
	}

	f := os.NewFile(uintptr(fd), "socketcan")
	s := &socketCAN{fd: fd, file: f, closed: make(chan struct{})}
	go s.readLoop()
	return s, nil
}

func (s *socketCAN) Close() error {
	select {
	case <-s.closed:
		return nil
	default:
	}
	close(s.closed)
	s.mu.Lock()
	s.recv = nil
	s.mu.Unlock()
	// Closing file also closes the fd; the reader exits on the next error.
	return s.file.Close()
}

// Send writes one frame using the Linux can_frame binary layout.
func (s *socketCAN) Send(frame Frame) error {
	if err := frame.Validate(); err != nil {
		return err
	}
	buf, err := frame.MarshalBinary()
	if err != nil {
		return err
	}
	for {
		select {
		case <-s.closed:
			return ErrClosed
		default:
		}
		n, werr := syscall.Write(s.fd, buf)
		if werr == nil {
			if n != len(buf) {
				return errors.New("canroute: short write")
			}
			return nil
		}
		if werr == syscall.EAGAIN || werr == syscall.EWOULDBLOCK {
			// Busy-wait with small yield
			syscall.Select(0, nil, nil, nil, &syscall.Timeval{Usec: 1000})
			continue
		}
		return werr
	}
}

// OnReceive installs h as the delivery callback; nil clears it.
func (s *socketCAN) OnReceive(h Handler) {
	s.mu.Lock()
	s.recv = h
	s.mu.Unlock()
}

// readLoop reads can_frames and delivers them until the socket closes.
func (s *socketCAN) readLoop() {
	buf := make([]byte, 16)
	for {
		select {
		case <-s.closed:
			return
		default:
		}
		n, rerr := syscall.Read(s.fd, buf)
		if rerr == syscall.EAGAIN || rerr == syscall.EWOULDBLOCK {
			syscall.Select(0, nil, nil, nil, &syscall.Timeval{Usec: 1000})
			continue
		}
		if rerr != nil {
			return
		}
		if n != len(buf) {
			continue
		}
		var f Frame
		if err := f.UnmarshalBinary(buf); err != nil {
			continue
		}
		s.mu.Lock()
		h := s.recv
		s.mu.Unlock()
		if h != nil {
			h(f)
		}
	}
}
