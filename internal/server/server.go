package server

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/http"
	"sync"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
	"github.com/quic-go/webtransport-go"

	"github.com/Louaq/Awesome-poetize-open/internal/config"
	"github.com/Louaq/Awesome-poetize-open/internal/connection"
	"github.com/Louaq/Awesome-poetize-open/internal/handler"
	"github.com/Louaq/Awesome-poetize-open/pkg/jwt"
)

// Presence 在线状态变化通知
type Presence interface {
	BroadcastOnlineCount()
}

// Server WebTransport 接入服务器
// 客户端在 /im 端点升级连接，token 放在查询参数里，
// 升级前验证，验证失败直接拒绝
type Server struct {
	cfg         *config.Config
	jwtService  *jwt.Service
	connMgr     *connection.Manager
	chatHandler *handler.ChatHandler
	presence    Presence
	idleChecker *connection.IdleChecker
	wtServer    *webtransport.Server
	logger      *slog.Logger
	wg          sync.WaitGroup
}

// New 创建接入服务器
func New(
	cfg *config.Config,
	jwtService *jwt.Service,
	connMgr *connection.Manager,
	chatHandler *handler.ChatHandler,
	presence Presence,
	logger *slog.Logger,
) *Server {
	return &Server{
		cfg:         cfg,
		jwtService:  jwtService,
		connMgr:     connMgr,
		chatHandler: chatHandler,
		presence:    presence,
		idleChecker: connection.NewIdleChecker(
			connMgr,
			cfg.IM.SessionIdleTimeout,
			cfg.IM.IdleCheckInterval,
			logger,
		),
		logger: logger,
	}
}

// Start 启动服务器，阻塞直到监听失败或被关闭
func (s *Server) Start(ctx context.Context) error {
	tlsConfig, err := s.loadTLSConfig()
	if err != nil {
		return err
	}

	quicConfig := &quic.Config{
		MaxIdleTimeout:        s.cfg.QUIC.MaxIdleTimeout,
		KeepAlivePeriod:       s.cfg.QUIC.KeepAlivePeriod,
		MaxIncomingStreams:    s.cfg.QUIC.MaxIncomingStreams,
		MaxIncomingUniStreams: s.cfg.QUIC.MaxIncomingUniStreams,
		EnableDatagrams:       true, // WebTransport 需要启用数据报支持
	}

	s.wtServer = &webtransport.Server{
		H3: http3.Server{
			Addr:       s.cfg.Server.Addr,
			TLSConfig:  tlsConfig,
			QUICConfig: quicConfig,
		},
		CheckOrigin: func(r *http.Request) bool {
			// TODO: 生产环境应该检查 Origin
			return true
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/im", s.handleUpgrade(ctx))
	s.wtServer.H3.Handler = mux

	go s.idleChecker.Start(ctx)

	s.logger.Info("WebTransport server starting", "addr", s.cfg.Server.Addr)
	return s.wtServer.ListenAndServe()
}

func (s *Server) handleUpgrade(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		claims, err := s.jwtService.Validate(token)
		if err != nil {
			s.logger.Warn("Connection rejected, invalid token", "remote", r.RemoteAddr, "error", err)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		session, err := s.wtServer.Upgrade(w, r)
		if err != nil {
			s.logger.Error("WebTransport upgrade failed", "error", err)
			return
		}

		s.wg.Add(1)
		go s.handleSession(ctx, session, claims)
	}
}

// handleSession 一个连接的完整生命周期
// 注销只发生在这里的 defer 中，空闲检测器只负责关连接，
// 保证每条连接恰好注销一次
func (s *Server) handleSession(ctx context.Context, session *webtransport.Session, claims *jwt.Claims) {
	defer s.wg.Done()

	c := connection.NewFromWebTransport(session, claims.UserID, claims.DeviceID, s.logger)
	s.connMgr.Add(c)
	s.logger.Info("User connected",
		"conn_id", c.ID(),
		"user_id", c.UserID(),
		"device_id", c.DeviceID())
	s.presence.BroadcastOnlineCount()

	defer func() {
		c.Close()
		s.connMgr.Remove(c.ID())
		s.logger.Info("User disconnected", "conn_id", c.ID(), "user_id", c.UserID())
		s.presence.BroadcastOnlineCount()
	}()

	// 客户端用一个双向流承载所有上行消息
	stream, err := session.AcceptStream(ctx)
	if err != nil {
		return
	}

	// 同步处理，流关闭即连接生命周期结束
	s.chatHandler.HandleStream(ctx, c, stream)
}

func (s *Server) loadTLSConfig() (*tls.Config, error) {
	if s.cfg.QUIC.CertFile != "" && s.cfg.QUIC.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(s.cfg.QUIC.CertFile, s.cfg.QUIC.KeyFile)
		if err != nil {
			return nil, err
		}
		s.logger.Info("Loaded TLS certificate",
			"cert_file", s.cfg.QUIC.CertFile,
			"key_file", s.cfg.QUIC.KeyFile)
		return &tls.Config{
			Certificates: []tls.Certificate{cert},
			NextProtos:   []string{"h3", "webtransport"},
			MinVersion:   tls.VersionTLS13,
		}, nil
	}

	// 开发环境：生成自签名证书
	s.logger.Warn("No TLS certificate configured, using self-signed certificate")
	return generateSelfSignedTLSConfig()
}

// ConnManager 返回连接管理器
func (s *Server) ConnManager() *connection.Manager {
	return s.connMgr
}

// Shutdown 停止接收新连接并等待存量连接退出
func (s *Server) Shutdown() {
	if s.wtServer != nil {
		s.wtServer.Close()
	}
	s.wg.Wait()
}
