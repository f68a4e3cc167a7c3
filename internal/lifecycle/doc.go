// Package lifecycle decorates controller factories so every created
// controller can open and close its window with paired cleanup.
//
// # Overview
//
// Manager.WrapFactory and Manager.WrapWidgetFactory take an existing factory
// and return one producing *Managed controllers. Creating a controller runs
// its Construct hook, if any, with the creation Config.
//
// # Opening
//
// Managed.OpenWindow resolves the window (argument or the controller's view)
// and, unless the controller is a tab group root, registers two one-shot
// listeners before asking the WindowManager to open it:
//
//   - open: registers the window with the ContextRegistry, then calls
//     Config.OnOpen
//   - close: unregisters the window, calls the Destruct hook (a missing hook
//     is logged), calls Destroy, calls Config.OnClose and resets keyboard
//     panning on the event source
//
// Both listeners remove themselves before running, so a duplicated close
// event never runs the teardown twice.
//
// # Platforms
//
// Platforms that need windows associated with a host context inject a
// *Contexts registry; the others use NopContexts.
package lifecycle
