package modbus

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"smart-energy/internal/config"
	"smart-energy/internal/models"
	"smart-energy/internal/simulation"

	"github.com/goburrow/serial"
	"github.com/sirupsen/logrus"
	"github.com/tbrandon/mbserver"
)

// Register map, served identically as holding (3) and input (4) registers.
//
//	0..5   wind, solar, total, household power, battery capacity, battery percentage (x100)
//	6      tick counter (low 16 bits)
//	10+4i  parameter i: value, min, max (x10, signed), status (0 normal, 1 abnormal)
const (
	RegWindPower         = 0
	RegSolarPower        = 1
	RegTotalPower        = 2
	RegHouseholdPower    = 3
	RegBatteryCapacity   = 4
	RegBatteryPercentage = 5
	RegTick              = 6
	RegParameterBase     = 10
	RegParameterStride   = 4

	maxReadCount = 125
)

type Server struct {
	server *mbserver.Server
	system *simulation.EnergySystem
	config *config.Config
	logger *logrus.Logger
}

func NewServer(cfg *config.Config, system *simulation.EnergySystem, logger *logrus.Logger) *Server {
	return &Server{
		system: system,
		config: cfg,
		logger: logger,
	}
}

// Start listens on RTU when a serial device is configured, TCP otherwise.
func (s *Server) Start() error {
	s.server = mbserver.NewServer()
	s.server.RegisterFunctionHandler(3, s.handleRead)
	s.server.RegisterFunctionHandler(4, s.handleRead)

	if device := s.config.Modbus.SerialDevice; device != "" {
		err := s.server.ListenRTU(&serial.Config{
			Address:  device,
			BaudRate: s.config.Modbus.BaudRate,
			DataBits: 8,
			StopBits: 1,
			Parity:   "N",
			Timeout:  10 * time.Second})
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", device, err)
		}
		s.logger.Infof("Modbus RTU server listening on %s", device)
		return nil
	}

	if err := s.server.ListenTCP(s.config.Modbus.Address); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Modbus.Address, err)
	}
	s.logger.Infof("Modbus TCP server listening on %s", s.config.Modbus.Address)
	return nil
}

func (s *Server) Stop() {
	if s.server != nil {
		s.logger.Info("Stopping modbus server")
		s.server.Close()
	}
}

func (s *Server) handleRead(server *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	data := frame.GetData()
	if len(data) < 4 {
		return []byte{}, &mbserver.IllegalDataValue
	}
	register := int(binary.BigEndian.Uint16(data[0:2]))
	numRegs := int(binary.BigEndian.Uint16(data[2:4]))

	s.logger.Debugf("Requesting %d with %d register count", register, numRegs)

	return readRegisters(EncodeRegisters(s.system.Snapshot()), register, numRegs)
}

func readRegisters(registers []uint16, start, count int) ([]byte, *mbserver.Exception) {
	if count == 0 || count > maxReadCount {
		return []byte{}, &mbserver.IllegalDataValue
	}
	if start+count > len(registers) {
		return []byte{}, &mbserver.IllegalDataAddress
	}

	dataSize := count * 2
	data := make([]byte, 1+dataSize)
	data[0] = byte(dataSize)
	for i, value := range registers[start : start+count] {
		binary.BigEndian.PutUint16(data[1+i*2:], value)
	}
	return data, &mbserver.Success
}

// EncodeRegisters lays a snapshot out on the register map.
func EncodeRegisters(snapshot simulation.Snapshot) []uint16 {
	registers := make([]uint16, RegParameterBase+RegParameterStride*len(snapshot.SecurityParameters))

	registers[RegWindPower] = unsigned(snapshot.WindPower * 100)
	registers[RegSolarPower] = unsigned(snapshot.SolarPower * 100)
	registers[RegTotalPower] = unsigned(snapshot.TotalPower * 100)
	registers[RegHouseholdPower] = unsigned(snapshot.HouseholdPower * 100)
	registers[RegBatteryCapacity] = unsigned(snapshot.BatteryCapacity * 100)
	registers[RegBatteryPercentage] = unsigned(snapshot.BatteryPercentage * 100)
	registers[RegTick] = uint16(snapshot.Tick)

	for i, p := range snapshot.SecurityParameters {
		base := RegParameterBase + RegParameterStride*i
		registers[base] = signed(p.Value * 10)
		registers[base+1] = signed(p.MinValue * 10)
		registers[base+2] = signed(p.MaxValue * 10)
		if p.Status != models.StatusNormal {
			registers[base+3] = 1
		}
	}

	return registers
}

func unsigned(value float64) uint16 {
	return uint16(math.Round(math.Max(0, math.Min(math.MaxUint16, value))))
}

func signed(value float64) uint16 {
	return uint16(int16(math.Round(math.Max(math.MinInt16, math.Min(math.MaxInt16, value)))))
}
