package nats

import (
	"encoding/json"
	"log/slog"

	"github.com/Louaq/Awesome-poetize-open/internal/connection"
)

// 跨节点推送主题
const subjectPush = "im.push"

// pushEnvelope 跨节点推送的信封
// frame 是已编码好的下行帧，接收节点原样投递
type pushEnvelope struct {
	NodeID int64  `json:"nodeId"`
	UserID int64  `json:"userId"`
	Frame  []byte `json:"frame"`
}

// LocalDelivery 本节点的连接查询
type LocalDelivery interface {
	SessionsFor(userID int64) []connection.Conn
}

// Relay 跨节点消息转发
// 多节点部署时用户可能连在别的节点上，
// 发送节点把帧广播出去，各节点只投递给自己持有的连接
type Relay struct {
	client *Client
	nodeID int64
	local  LocalDelivery
	logger *slog.Logger
}

// NewRelay 创建转发器并订阅推送主题
func NewRelay(client *Client, nodeID int64, local LocalDelivery, logger *slog.Logger) (*Relay, error) {
	r := &Relay{
		client: client,
		nodeID: nodeID,
		local:  local,
		logger: logger,
	}

	if err := client.Subscribe(subjectPush, r.handlePush); err != nil {
		return nil, err
	}
	return r, nil
}

// PublishPush 把下行帧广播给其他节点
// 失败只记日志：本节点已经投递过，跨节点推送是增强而不是保证
func (r *Relay) PublishPush(userID int64, frame []byte) {
	data, err := json.Marshal(&pushEnvelope{
		NodeID: r.nodeID,
		UserID: userID,
		Frame:  frame,
	})
	if err != nil {
		r.logger.Error("Failed to marshal push envelope", "error", err)
		return
	}

	if err := r.client.Publish(subjectPush, data); err != nil {
		r.logger.Warn("Failed to publish push", "user_id", userID, "error", err)
	}
}

// handlePush 收到其他节点的推送，投递给本节点持有的连接
func (r *Relay) handlePush(data []byte) {
	var env pushEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		r.logger.Warn("Malformed push envelope dropped", "error", err)
		return
	}

	// 自己发出的广播不再投递，发送节点已经推过本地连接
	if env.NodeID == r.nodeID {
		return
	}

	for _, conn := range r.local.SessionsFor(env.UserID) {
		if err := conn.Send(env.Frame); err != nil {
			r.logger.Warn("Relayed push failed",
				"user_id", env.UserID,
				"conn_id", conn.ID(),
				"error", err)
		}
	}
}
