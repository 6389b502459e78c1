package chat

import (
	"strings"

	"github.com/themobileprof/kernelchat/internal/classifier"
)

// Demo is one chat experience: a persona, its temperature and the plugins it may call
type Demo struct {
	Name         classifier.Demo `json:"name"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Temperature  float64         `json:"temperature"`
	Plugins      []string        `json:"plugins"`
	Instructions string          `json:"-"`
}

// AutoDemo asks the engine to pick a demo from the message
const AutoDemo = "auto"

var demos = []Demo{
	{
		Name:        classifier.DemoChat,
		Title:       "Function calling",
		Description: "Ask for the time, a random number, the news or control the lights",
		Temperature: 0.2,
		Plugins:     []string{"Custom", "Lights"},
		Instructions: `Assistant is a large language model.
This assistant uses plugins to interact with the software. You can tell the time using Custom.get_current_time.
The assistant is very brief and succinct with words and does not talk much.
The assistant always includes the answer to the user's question in its response.
The assistant begins the conversation with a greeting and asks the user which function they would like to call.
If the prompt was simply a command, the assistant will ask for clarification ONLY if it is confused, otherwise the assistant replies with 'Done.'`,
	},
	{
		Name:        classifier.DemoDocuments,
		Title:       "Document routing",
		Description: "Paste a document and have it routed to the right department",
		Temperature: 0.2,
		Plugins:     []string{"Routing"},
		Instructions: `You are an AI assistant specialized in analyzing documents and routing them to appropriate departments.
Analyze the document content carefully and determine the most appropriate department.
Valid departments are: Accounting, Legal, Human Resources, IT Support, Sales, Customer Service, and Executive Office.

Provide your response in this format:
1. State the determined department name
2. Provide a brief explanation of why you chose this department

Be decisive and choose the single most appropriate department.`,
	},
	{
		Name:        classifier.DemoApplicants,
		Title:       "Applicant management",
		Description: "Ask about job applicants, positions, salaries and interview stages",
		Temperature: 0.2,
		Plugins:     []string{"ApplicantManagement"},
		Instructions: `You are an AI assistant specialized in managing job applicants.
You have access to the ApplicantManagement plugin with the following capabilities:
- Retrieving information about all applicants
- Finding specific applicants by name
- Getting applicants for specific positions

Be concise in your responses and use the plugin functions when appropriate.
When analyzing salary data or experience, provide insights about market competitiveness.
Consider location and experience when discussing candidates.
Provide information in a clear, organized way when displaying applicant data.`,
	},
	{
		Name:        classifier.DemoCustomerService,
		Title:       "Customer service",
		Description: "Life insurance customer service: addresses, policies, claims and reviews",
		Temperature: 0.3,
		Plugins:     []string{"CustomerService"},
		Instructions: `You are an AI customer service assistant for a life insurance company.
Your task is to help customers with their queries, including address changes, policy information, claim status, and policy reviews.
Use the CustomerService plugin to fetch or update information when necessary.
Always confirm the customer's identity by asking for their policy number before providing or updating any information.
Be proactive in suggesting relevant services or information based on the customer's situation.
Always maintain a professional, empathetic tone, and ensure all interactions are compliant with financial services regulations.
If you're unsure about any information, ask for clarification rather than making assumptions.`,
	},
}

// Demos returns every demo in display order
func Demos() []Demo {
	out := make([]Demo, len(demos))
	copy(out, demos)
	return out
}

// LookupDemo finds a demo by name, ignoring case and surrounding space
func LookupDemo(name string) (Demo, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, d := range demos {
		if string(d.Name) == name {
			return d, true
		}
	}
	return Demo{}, false
}

// allows reports whether the demo may call functions of plugin
func (d Demo) allows(plugin string) bool {
	for _, p := range d.Plugins {
		if strings.EqualFold(p, plugin) {
			return true
		}
	}
	return false
}
