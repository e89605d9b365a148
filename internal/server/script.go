package server

import (
	"fmt"
	"net/http"
)

// handleScript serves the embeddable client script for pages not
// served through splitship itself: it fetches the assignment, swaps
// the headline, and intercepts form submissions into /submit.
func (s *Server) handleScript(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Determine server URL from request
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	serverURL := fmt.Sprintf("%s://%s", scheme, r.Host)

	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "public, max-age=60")
	w.Write([]byte(GenerateScript(serverURL)))
}

// GenerateScript generates the ab.js client script with the given server URL
func GenerateScript(serverURL string) string {
	return fmt.Sprintf(`(function(){
  var S='%s';

  fetch(S+'/assign',{credentials:'include'}).then(function(r){return r.json()}).then(function(v){
    // Swap the headline wherever the baseline appears
    document.querySelectorAll('.title, .hero-title, h1').forEach(function(el){
      if(el.textContent.indexOf(v.baseline)!==-1){
        el.textContent=v.title;
      }
    });
    var t=document.querySelector('title');
    if(t&&t.textContent.indexOf(v.baseline)!==-1){
      t.textContent=t.textContent.replace(v.baseline,v.title);
    }
    document.body.setAttribute('data-ab-variation',v.id);
  }).catch(function(){});

  // Intercept every form once
  document.querySelectorAll('form').forEach(function(form){
    if(form.hasAttribute('data-ab-enhanced'))return;
    form.setAttribute('data-ab-enhanced','true');

    form.addEventListener('submit',function(e){
      e.preventDefault();
      var data=new FormData(form);
      data.append('form_id',form.id||'unknown-form');
      data.append('source_url',window.location.href);

      var btn=form.querySelector('[type=submit]');
      if(btn){btn.disabled=true;}

      fetch(S+'/submit',{method:'POST',body:data,credentials:'include'})
        .then(function(r){return r.json()})
        .then(function(res){
          if(!res.accepted){
            if(btn){btn.disabled=false;}
            (res.fieldErrors||[]).forEach(function(name){
              var el=form.querySelector('[name='+name+']');
              if(el){el.style.borderColor='#ff4444';}
            });
            alert(res.message||'Please check the form and try again.');
            return;
          }
          setTimeout(function(){
            if(btn){btn.disabled=false;}
            if(res.resetForm){form.reset();}
            var confirmation=document.getElementById('confirmation');
            if(confirmation){
              form.style.display='none';
              confirmation.classList.add('show');
              confirmation.scrollIntoView({behavior:'smooth',block:'center'});
            }else if(res.message){
              alert(res.message);
            }
          },res.confirmDelayMs||0);
        })
        .catch(function(){if(btn){btn.disabled=false;}});
    });
  });
})();
`, serverURL)
}
