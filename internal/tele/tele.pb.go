// Hand maintained to match tele.proto, field tags drive proto reflection.
package tele

import (
	"fmt"

	proto "github.com/golang/protobuf/proto"
)

type State int32

const (
	State_Invalid      State = 0
	State_Boot         State = 1
	State_Nominal      State = 2
	State_Disconnected State = 3
	State_Shutdown     State = 4
)

var State_name = map[int32]string{
	0: "Invalid",
	1: "Boot",
	2: "Nominal",
	3: "Disconnected",
	4: "Shutdown",
}

func (x State) String() string {
	if s, ok := State_name[int32(x)]; ok {
		return s
	}
	return fmt.Sprintf("State(%d)", int32(x))
}

type Telemetry struct {
	ClientId     string `protobuf:"bytes,1,opt,name=client_id,json=clientId,proto3" json:"client_id,omitempty"`
	Time         int64  `protobuf:"varint,2,opt,name=time,proto3" json:"time,omitempty"`
	Error        string `protobuf:"bytes,3,opt,name=error,proto3" json:"error,omitempty"`
	ActiveApp    string `protobuf:"bytes,4,opt,name=active_app,json=activeApp,proto3" json:"active_app,omitempty"`
	Tick         uint64 `protobuf:"varint,5,opt,name=tick,proto3" json:"tick,omitempty"`
	BuildVersion string `protobuf:"bytes,6,opt,name=build_version,json=buildVersion,proto3" json:"build_version,omitempty"`
}

func (m *Telemetry) Reset()         { *m = Telemetry{} }
func (m *Telemetry) String() string { return proto.CompactTextString(m) }
func (*Telemetry) ProtoMessage()    {}

type Command struct {
	Id       uint32 `protobuf:"varint,1,opt,name=id,proto3" json:"id,omitempty"`
	Line     string `protobuf:"bytes,2,opt,name=line,proto3" json:"line,omitempty"`
	Deadline int64  `protobuf:"varint,3,opt,name=deadline,proto3" json:"deadline,omitempty"`
}

func (m *Command) Reset()         { *m = Command{} }
func (m *Command) String() string { return proto.CompactTextString(m) }
func (*Command) ProtoMessage()    {}

type Response struct {
	CommandId uint32 `protobuf:"varint,1,opt,name=command_id,json=commandId,proto3" json:"command_id,omitempty"`
	Payload   []byte `protobuf:"bytes,2,opt,name=payload,proto3" json:"payload,omitempty"`
	Error     string `protobuf:"bytes,3,opt,name=error,proto3" json:"error,omitempty"`
}

func (m *Response) Reset()         { *m = Response{} }
func (m *Response) String() string { return proto.CompactTextString(m) }
func (*Response) ProtoMessage()    {}
