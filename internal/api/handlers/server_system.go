package handlers

import (
	"net"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"labtrack.io/labtrack/internal/pkg/logger"
)

// GetServerInfo handles GET /api/server-info.
// Clients on the LAN use it to find the address of the service.
func (s *Server) GetServerInfo(c *gin.Context) {
	addresses, err := s.addresses()
	if err != nil {
		logger.Warn("Failed to list network interfaces", zap.Error(err))
		addresses = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"port":      s.port,
		"addresses": addresses,
		"status":    "online",
	})
}

// DebugEquipmentStatus handles GET /api/debug/equipment-status.
func (s *Server) DebugEquipmentStatus(c *gin.Context) {
	report, err := s.equipment.StatusReport(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// DebugMaintenanceFiles handles GET /api/debug/maintenance-files.
func (s *Server) DebugMaintenanceFiles(c *gin.Context) {
	report, err := s.maintenance.FileReport(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	body := gin.H{"files": report}
	if s.pools != nil {
		body["workers"] = s.pools.Metrics()
	}
	c.JSON(http.StatusOK, body)
}

// GetOpenAPI handles GET /api/openapi.yaml.
func (s *Server) GetOpenAPI(c *gin.Context) {
	if len(s.openapi) == 0 {
		c.Status(http.StatusNotFound)
		return
	}
	c.Data(http.StatusOK, "application/yaml", s.openapi)
}

// lanAddresses lists the IPv4 addresses of the interfaces that are up,
// loopback excluded.
func lanAddresses() ([]string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	out := []string{}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			if ip4 := ipNet.IP.To4(); ip4 != nil {
				out = append(out, ip4.String())
			}
		}
	}
	sort.Strings(out)
	return out, nil
}
