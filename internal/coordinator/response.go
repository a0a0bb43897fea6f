package coordinator

// Kind tags a response variant. The engine runs in-process, but the response
// protocol keeps a tagged message shape so the language-service boundary
// contract could cross a process boundary unchanged.
type Kind string

// Response kinds emitted to the language service.
const (
	KindPackageInstalled        Kind = "packageInstalled"
	KindSetTypings              Kind = "setTypings"
	KindInvalidateCachedTypings Kind = "invalidateCachedTypings"
	KindBeginInstallTypes       Kind = "beginInstallTypes"
	KindEndInstallTypes         Kind = "endInstallTypes"
)

// Response is one tagged notification flowing back to the language service.
// Which fields are meaningful depends on Kind.
type Response struct {
	Kind        Kind
	RequestID   uint64
	ProjectRoot string
	Success     bool     // packageInstalled, endInstallTypes
	PackageName string   // packageInstalled
	Packages    []string // beginInstallTypes
	Typings     []string // setTypings: installed declaration directories
	Message     string   // failure detail, empty on success
}

// Handler consumes coordinator responses. Handlers must not block; they run
// on the install pipeline goroutine.
type Handler func(Response)
