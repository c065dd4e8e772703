package Adhoc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"SegTrackServer/logger"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DmlInstance    = 0x2001
	CpuInstance    = 0x2002
	CudaInstance   = 0x2003
	RocmInstance   = 0x2004
	TimeOutSeconds = 5
)

type RegisterRequest struct {
	Id            string `json:"id"`
	IP            string `json:"ip"`
	Port          int    `json:"port"`
	HTTPPort      int    `json:"httpPort"`
	InstanceClass int    `json:"instanceClass"`
	Sessions      int    `json:"sessions"`
	TimeStamp     int64  `json:"timestamp"`
}

type RegisterResponse struct {
	Id      string `json:"id"`
	Success bool   `json:"success"`
}

type RegServerConfig struct {
	Port int
	Addr string
}

func (reg *RegServerConfig) SetAddress(addr string, port int) {
	reg.Addr = addr
	reg.Port = port
}

// Heartbeat describes this instance to the registry server.
type Heartbeat struct {
	Registry      RegServerConfig
	IP            string
	RPCPort       int
	HTTPPort      int
	InstanceClass int
	Interval      time.Duration
	// Sessions reports the open session count at send time; may be nil.
	Sessions func() int
}

// InstanceClassOf maps a config name to its class code, defaulting to Cpu.
func InstanceClassOf(name string) (int, bool) {
	switch name {
	case "Dml":
		return DmlInstance, true
	case "Cuda":
		return CudaInstance, true
	case "Rocm":
		return RocmInstance, true
	case "Cpu":
		return CpuInstance, true
	default:
		return CpuInstance, false
	}
}

func GetOutboundIP() (string, error) {
	// UDP dial only resolves the route; nothing is sent.
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}

// SendAliveMessage posts a registration right away and then every
// Interval until ctx is cancelled.
func SendAliveMessage(ctx context.Context, hb Heartbeat, wg *sync.WaitGroup) {
	defer wg.Done()
	if hb.Interval <= 0 {
		hb.Interval = TimeOutSeconds * time.Second
	}
	url := fmt.Sprintf("http://%s:%d/api/register", hb.Registry.Addr, hb.Registry.Port)
	ticker := time.NewTicker(hb.Interval)
	defer ticker.Stop()
	client := resty.New().SetTimeout(TimeOutSeconds * time.Second)
	id := uuid.NewString()
	safeDoRequest := func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Log().Error("SendAliveMessage panic recovered", zap.Any("panic", r))
			}
		}()
		if err := register(ctx, client, url, hb.request(id)); err != nil {
			logger.Log().Error("registration failed", zap.String("url", url), zap.Error(err))
		}
	}
	safeDoRequest()
	for {
		select {
		case <-ctx.Done():
			logger.Log().Info("SendAliveMessage context cancelled, exiting goroutine.")
			return
		case <-ticker.C:
			safeDoRequest()
		}
	}
}

func (hb Heartbeat) request(id string) RegisterRequest {
	req := RegisterRequest{
		Id:            id,
		IP:            hb.IP,
		Port:          hb.RPCPort,
		HTTPPort:      hb.HTTPPort,
		InstanceClass: hb.InstanceClass,
		TimeStamp:     time.Now().Unix(),
	}
	if hb.Sessions != nil {
		req.Sessions = hb.Sessions()
	}
	return req
}

func register(ctx context.Context, client *resty.Client, url string, body RegisterRequest) error {
	var respBody RegisterResponse
	resp, err := client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&respBody).
		Post(url)
	if err != nil {
		return fmt.Errorf("request error: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("server returned error: %s, body: %s", resp.Status(), resp.String())
	}
	if !respBody.Success {
		return fmt.Errorf("registry rejected instance %s", body.Id)
	}
	return nil
}
