package connection

// InjectClose delivers a close event for the current socket, as a second
// close arriving from the transport would.
func (m *Manager) InjectClose(code int) {
	m.handleClose(m.gen, code)
}
