package dhcp

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/staticdhcpd/staticdhcpd/internal/config"
	"github.com/staticdhcpd/staticdhcpd/internal/metrics"
	"github.com/staticdhcpd/staticdhcpd/pkg/dhcpv4"
)

// SO_BINDTODEVICE pins the socket to a specific interface (Linux only, value 25).
const soBindToDevice = 25

// Server is the static DHCPv4 network link: one or two UDP listeners
// (main server port, optional PXE/proxy port), the engine that answers
// each packet, the dispatcher that gates abusive MACs, and the
// statistics sink that records one entry per completed task (spec §4.3,
// §4.6).
type Server struct {
	cfg        *config.Config
	engine     *Engine
	dispatcher *Dispatcher
	stats      *Sink
	logger     *slog.Logger

	serverIP net.IP

	mainConn  *net.UDPConn
	proxyConn *net.UDPConn
	udpResp   *udpResponder
	l2Resp    *l2Responder

	workers chan struct{} // bounds concurrent packet-processing goroutines (spec §5)

	wg   sync.WaitGroup
	done chan struct{}
}

// NewServer creates a network link bound to the given engine, dispatcher
// and statistics sink.
func NewServer(cfg *config.Config, serverIP net.IP, engine *Engine, dispatcher *Dispatcher, stats *Sink, logger *slog.Logger) *Server {
	poolSize := cfg.Server.WorkerPoolSize
	if poolSize <= 0 {
		poolSize = config.DefaultWorkerPoolSize
	}
	return &Server{
		cfg:        cfg,
		engine:     engine,
		dispatcher: dispatcher,
		stats:      stats,
		logger:     logger,
		serverIP:   serverIP,
		workers:    make(chan struct{}, poolSize),
		done:       make(chan struct{}),
	}
}

// Start opens the listener(s) and begins serving.
func (s *Server) Start(ctx context.Context) error {
	mainAddr := fmt.Sprintf(":%d", s.cfg.Server.ServerPort)
	conn, err := s.listen(ctx, mainAddr, s.cfg.Server.ResponseInterface)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", mainAddr, err)
	}
	s.mainConn = conn
	s.udpResp = newUDPResponder(conn)

	if s.cfg.Server.ResponseInterface != "" {
		iface, err := net.InterfaceByName(s.cfg.Server.ResponseInterface)
		if err != nil {
			s.logger.Warn("L2 responder disabled: interface lookup failed",
				"interface", s.cfg.Server.ResponseInterface, "error", err)
		} else {
			l2, err := newL2Responder(iface, s.serverIP, s.cfg.Server.ResponseInterfaceQTags, s.logger)
			if err != nil {
				s.logger.Warn("L2 responder disabled", "error", err)
			} else {
				s.l2Resp = l2
			}
		}
	}

	s.wg.Add(1)
	go s.serve(ctx, s.mainConn, false)

	if s.cfg.Server.ProxyPort != 0 {
		proxyAddr := fmt.Sprintf(":%d", s.cfg.Server.ProxyPort)
		proxyConn, err := s.listen(ctx, proxyAddr, s.cfg.Server.ResponseInterface)
		if err != nil {
			return fmt.Errorf("listening on proxy port %s: %w", proxyAddr, err)
		}
		s.proxyConn = proxyConn
		s.wg.Add(1)
		go s.serve(ctx, s.proxyConn, true)
	}

	s.logger.Info("DHCP server started", "server_port", s.cfg.Server.ServerPort, "proxy_port", s.cfg.Server.ProxyPort)
	return nil
}

func (s *Server) listen(ctx context.Context, addr, iface string) (*net.UDPConn, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var firstErr error
			c.Control(func(fd uintptr) {
				if err := syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1); err != nil {
					s.logger.Warn("failed to set SO_REUSEADDR", "error", err)
				}
				if err := syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_BROADCAST, 1); err != nil {
					s.logger.Warn("failed to set SO_BROADCAST", "error", err)
					firstErr = err
				}
				if iface != "" {
					if err := syscall.SetsockoptString(int(fd), syscall.SOL_SOCKET, soBindToDevice, iface); err != nil {
						s.logger.Debug("SO_BINDTODEVICE not available", "interface", iface, "error", err)
					}
				}
			})
			return firstErr
		},
	}

	pc, err := lc.ListenPacket(ctx, "udp4", addr)
	if err != nil {
		return nil, err
	}
	return pc.(*net.UDPConn), nil
}

// serve is the per-listener packet loop: one goroutine per inbound
// packet (spec §5).
func (s *Server) serve(ctx context.Context, conn *net.UDPConn, isProxyPort bool) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		default:
		}

		buf := GetBuffer()
		n, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-s.done:
				PutBuffer(buf)
				return
			default:
			}
			s.logger.Error("reading UDP packet", "error", err)
			PutBuffer(buf)
			continue
		}

		s.workers <- struct{}{}
		s.wg.Add(1)
		go func(data []byte, length int, addr *net.UDPAddr) {
			defer s.wg.Done()
			defer func() { <-s.workers }()
			defer PutBuffer(data)
			s.processPacket(data[:length], addr, isProxyPort)
		}(buf, n, src)
	}
}

// processPacket decodes, dispatches and answers one inbound packet,
// emitting a statistics Record regardless of outcome (spec §4.6).
func (s *Server) processPacket(data []byte, src *net.UDPAddr, isProxyPort bool) {
	start := time.Now()
	rec := Record{SourceAddr: src, PacketType: "OTHER", ArrivedOnProxy: isProxyPort}
	defer func() {
		rec.Duration = time.Since(start)
		s.stats.Emit(rec)
	}()

	pkt, err := DecodePacket(data)
	if err != nil {
		metrics.PacketErrors.WithLabelValues("decode").Inc()
		s.logger.Debug("dropping malformed packet", "error", err, "src", src.String(), "size", len(data))
		return
	}
	pkt.ArrivedOnProxyPort = isProxyPort

	if pkt.Op != dhcpv4.OpCodeBootRequest {
		return
	}

	mac := pkt.CHAddr
	rec.MAC = mac
	if s.dispatcher.IsIgnored(mac) {
		metrics.DispatcherDropped.WithLabelValues("ignored").Inc()
		s.logger.Debug("dropping packet from ignored MAC", "mac", mac.String())
		return
	}

	msgType := pkt.MessageType().String()
	metrics.PacketsReceived.WithLabelValues(msgType).Inc()

	reply, outcome, logicalType := s.engine.Handle(pkt, src)
	metrics.PacketProcessingDuration.WithLabelValues(msgType).Observe(time.Since(start).Seconds())

	if outcome.IsDrop() {
		metrics.DispatcherDropped.WithLabelValues(outcome.Kind()).Inc()
		s.dispatcher.Apply(mac, outcome, s.cfg.Dispatcher.UnauthorizedClientTimeout)
	}
	s.dispatcher.RecordAction(mac)

	rec.PacketType = logicalType
	rec.Processed = reply != nil
	if reply != nil {
		rec.IP = reply.YIAddr
	}

	if reply == nil {
		return
	}

	replyBytes, err := reply.Encode()
	if err != nil {
		metrics.PacketErrors.WithLabelValues("encode").Inc()
		s.logger.Error("encoding reply", "error", err, "mac", mac.String())
		return
	}

	responder, dst := selectResponder(reply, pkt, src, s.udpResp, s.l2Resp)
	if err := responder.Send(replyBytes, dst); err != nil {
		metrics.PacketErrors.WithLabelValues("send").Inc()
		s.logger.Error("sending reply", "error", err, "dst", dst.String(), "mac", mac.String())
		return
	}
	metrics.PacketsSent.WithLabelValues(reply.MessageType().String()).Inc()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() {
	close(s.done)
	if s.mainConn != nil {
		s.mainConn.Close()
	}
	if s.proxyConn != nil {
		s.proxyConn.Close()
	}
	if s.l2Resp != nil {
		s.l2Resp.Close()
	}
	s.wg.Wait()
	s.logger.Info("DHCP server stopped")
}
