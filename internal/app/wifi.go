package app

import (
	"fmt"
	"net"
	"strconv"

	"github.com/temoto/zeos/internal/settings"
	"github.com/temoto/zeos/internal/types"
)

// Runtime settings keys used by network apps.
const (
	KeyWifiSSID = "wifi.ssid"
	KeyWifiPwd  = "wifi.pwd"
	KeyWifiIP   = "wifi.ip"
	KeyWifiHost = "wifi.host"
	KeyWifiPort = "wifi.port"
	KeyWifiURL  = "wifi.url"
	KeyUserUUID = "user.uuid"
)

func wifiConnect(s *settings.Settings) types.WifiConnect {
	return types.WifiConnect{
		SSID:     s.GetString(KeyWifiSSID, ""),
		Password: s.GetString(KeyWifiPwd, ""),
	}
}

func wifiRequest(s *settings.Settings) types.HTTPRequest {
	host := s.GetString(KeyWifiHost, "")
	ip := s.GetString(KeyWifiIP, host)
	port := s.GetInt(KeyWifiPort, 80)
	return types.HTTPRequest{
		Host: host,
		Addr: net.JoinHostPort(ip, strconv.Itoa(port)),
		Path: s.GetString(KeyWifiURL, "/"),
	}
}

func connectInfo(c types.WifiConnect) types.Info {
	return types.Info{Text: fmt.Sprintf("Trying to connect: ssid=%s", c.SSID)}
}
