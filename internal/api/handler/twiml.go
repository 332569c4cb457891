package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/beevik/etree"
)

// TwiML builders. The telephony provider fetches these XML documents to
// drive the interactive voice menu and SMS auto-replies.

func newTwiML() (*etree.Document, *etree.Element) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("Response")
	return doc, root
}

func addSay(parent *etree.Element, text string) {
	parent.CreateElement("Say").SetText(text)
}

func addGather(root *etree.Element, numDigits int, action string) *etree.Element {
	gather := root.CreateElement("Gather")
	gather.CreateAttr("numDigits", strconv.Itoa(numDigits))
	gather.CreateAttr("action", action)
	gather.CreateAttr("method", http.MethodPost)
	return gather
}

func addRedirect(root *etree.Element, url string) {
	root.CreateElement("Redirect").SetText(url)
}

func addDial(root *etree.Element, number string) {
	root.CreateElement("Dial").SetText(number)
}

func addMessage(root *etree.Element, text string) {
	root.CreateElement("Message").SetText(text)
}

func respondTwiML(w http.ResponseWriter, doc *etree.Document) {
	body, err := doc.WriteToString()
	if err != nil {
		slog.Default().Error("Failed to render TwiML response", "error", err)
		http.Error(w, "<Response><Say>Sorry, something went wrong.</Say></Response>", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}
