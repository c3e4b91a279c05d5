/*
Package agent holds the packages of the courier runtime. The agency.Agency
is the most important abstraction of the package: it wires the wire codec,
the inbound transport manager, the dispatcher and the outbound delivery
engine together. Other packages sesn, dispatch, mailbox, trans, etc. offer
specific services for the runtime.
*/
package agent
