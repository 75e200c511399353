package transport

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/FairForge/containerdispatch/internal/common"
	"github.com/godbus/dbus/v5"
)

// Target is the addressing for one transport. The set of implementations is
// closed: RESTTarget, MQTTTarget, QueueTarget, DBusTarget.
type Target interface {
	Kind() Kind
	Validate() error
	String() string
	isTarget()
}

func validatePort(port int) error {
	if port < 1 || port > 65535 {
		return common.ErrInvalid("port", "must be between 1 and 65535, got %d", port)
	}
	return nil
}

// RESTTarget addresses the manager's HTTP endpoint
type RESTTarget struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

func (t RESTTarget) Kind() Kind { return KindREST }
func (RESTTarget) isTarget()    {}

func (t RESTTarget) Validate() error {
	if strings.TrimSpace(t.Host) == "" {
		return common.ErrInvalid("host", "required")
	}
	return validatePort(t.Port)
}

// URL returns http://host:port/execute (or the configured path)
func (t RESTTarget) URL() string {
	path := t.Path
	if path == "" {
		path = DefaultRESTPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "http://" + net.JoinHostPort(t.Host, strconv.Itoa(t.Port)) + path
}

func (t RESTTarget) String() string { return t.URL() }

// MQTTTarget addresses a broker topic
type MQTTTarget struct {
	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

func (t MQTTTarget) Kind() Kind { return KindMQTT }
func (MQTTTarget) isTarget()    {}

func (t MQTTTarget) Validate() error {
	if strings.TrimSpace(t.Broker) == "" {
		return common.ErrInvalid("broker", "required")
	}
	if err := validatePort(t.Port); err != nil {
		return err
	}
	if t.Topic == "" {
		return common.ErrInvalid("topic", "required")
	}
	if strings.ContainsAny(t.Topic, "+#") {
		return common.ErrInvalid("topic", "wildcards are not allowed when publishing: %q", t.Topic)
	}
	if t.QoS > 2 {
		return common.ErrInvalid("qos", "must be 0, 1 or 2, got %d", t.QoS)
	}
	return nil
}

func (t MQTTTarget) BrokerURL() string {
	return "tcp://" + net.JoinHostPort(t.Broker, strconv.Itoa(t.Port))
}

func (t MQTTTarget) String() string { return t.BrokerURL() + "/" + t.Topic }

// QueueTarget addresses a POSIX message queue, created if absent
type QueueTarget struct {
	Name        string `yaml:"name"`
	MaxMessages int    `yaml:"max_messages"`
	MessageSize int    `yaml:"message_size"`
}

func (t QueueTarget) Kind() Kind { return KindQueue }
func (QueueTarget) isTarget()    {}

func (t QueueTarget) Validate() error {
	if t.Name == "" || t.Name == "/" {
		return common.ErrInvalid("queue", "name required")
	}
	if !strings.HasPrefix(t.Name, "/") || strings.Contains(t.Name[1:], "/") {
		return common.ErrInvalid("queue", "name must be a single leading-slash component, got %q", t.Name)
	}
	if len(t.Name) > 255 {
		return common.ErrInvalid("queue", "name longer than 255 characters")
	}
	if t.MaxMessages < 0 || t.MessageSize < 0 {
		return common.ErrInvalid("queue", "attributes must not be negative")
	}
	return nil
}

func (t QueueTarget) attrs() (maxMsg, msgSize int) {
	maxMsg, msgSize = t.MaxMessages, t.MessageSize
	if maxMsg == 0 {
		maxMsg = DefaultQueueMaxMessages
	}
	if msgSize == 0 {
		msgSize = DefaultQueueMessageSize
	}
	return maxMsg, msgSize
}

func (t QueueTarget) String() string { return "mqueue:" + t.Name }

// DBusEncoding decides which payloads are base64-encoded before the call
type DBusEncoding string

const (
	// DBusBase64Always encodes every payload; the manager's consumer
	// decodes unconditionally
	DBusBase64Always DBusEncoding = "base64-always"
	// DBusBase64Binary encodes binary payloads only and sends JSON as-is
	DBusBase64Binary DBusEncoding = "base64-binary"
)

// DBusTarget addresses the manager's D-Bus method
type DBusTarget struct {
	BusName    string       `yaml:"bus_name"`
	ObjectPath string       `yaml:"object_path"`
	Interface  string       `yaml:"interface"`
	Method     string       `yaml:"method"`
	Encoding   DBusEncoding `yaml:"encoding"`
}

func (t DBusTarget) Kind() Kind { return KindDBus }
func (DBusTarget) isTarget()    {}

func (t DBusTarget) Validate() error {
	if t.BusName == "" {
		return common.ErrInvalid("bus_name", "required")
	}
	if !validDBusName(t.BusName) {
		return common.ErrInvalid("bus_name", "%q is not a valid bus name", t.BusName)
	}
	if !dbus.ObjectPath(t.ObjectPath).IsValid() {
		return common.ErrInvalid("object_path", "%q is not a valid object path", t.ObjectPath)
	}
	if !validDBusName(t.Interface) {
		return common.ErrInvalid("interface", "%q is not a valid interface name", t.Interface)
	}
	switch t.Encoding {
	case "", DBusBase64Always, DBusBase64Binary:
	default:
		return common.ErrInvalid("encoding", "unsupported d-bus encoding %q", t.Encoding)
	}
	return nil
}

// Member returns interface.method
func (t DBusTarget) Member() string {
	method := t.Method
	if method == "" {
		method = DefaultDBusMethod
	}
	return t.Interface + "." + method
}

func (t DBusTarget) String() string {
	return fmt.Sprintf("%s%s %s", t.BusName, t.ObjectPath, t.Member())
}

// validDBusName checks the dotted-element rule shared by bus and interface
// names: two or more non-empty elements of [A-Za-z0-9_-], not starting
// with a digit.
func validDBusName(name string) bool {
	name = strings.TrimPrefix(name, ":")
	if name == "" || len(name) > 255 {
		return false
	}
	elems := strings.Split(name, ".")
	if len(elems) < 2 {
		return false
	}
	for _, e := range elems {
		if e == "" || (e[0] >= '0' && e[0] <= '9') {
			return false
		}
		for _, c := range e {
			ok := c == '_' || c == '-' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
			if !ok {
				return false
			}
		}
	}
	return true
}
