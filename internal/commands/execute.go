package commands

import "fmt"

type Result struct {
	Message string
}

type Handlers struct {
	Edit    func(EditArgs) (Result, error)
	Delete  func(DeleteArgs) (Result, error)
	Detach  func() (Result, error)
	Done    func() (Result, error)
	Skip    func() (Result, error)
	Restore func() (Result, error)
}

func Execute(cmd Command, handlers Handlers) (Result, error) {
	switch cmd.Type {
	case TypeEdit:
		if handlers.Edit == nil {
			return Result{}, missing(cmd.Type)
		}
		return handlers.Edit(*cmd.Edit)
	case TypeDelete:
		if handlers.Delete == nil {
			return Result{}, missing(cmd.Type)
		}
		return handlers.Delete(*cmd.Delete)
	case TypeDetach:
		return call(cmd.Type, handlers.Detach)
	case TypeDone:
		return call(cmd.Type, handlers.Done)
	case TypeSkip:
		return call(cmd.Type, handlers.Skip)
	case TypeRestore:
		return call(cmd.Type, handlers.Restore)
	default:
		return Result{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unknown command type: %s", cmd.Type)}
	}
}

func call(t Type, fn func() (Result, error)) (Result, error) {
	if fn == nil {
		return Result{}, missing(t)
	}
	return fn()
}

func missing(t Type) error {
	return &CommandError{Code: ErrCodeHandlerMissing, Message: fmt.Sprintf("%s handler not configured", t)}
}
